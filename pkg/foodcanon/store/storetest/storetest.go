// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// Opener returns a fresh, empty store. The store is closed by the caller.
type Opener func(t *testing.T) store.Store

// Run exercises every Store method against stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"Canonical", testCanonical},
		{"RunLifecycle", testRunLifecycle},
		{"RunRoundTrip", testRunRoundTrip},
		{"DuplicateRun", testDuplicateRun},
		{"PromotionAtomicity", testPromotionAtomicity},
		{"IdentityVersions", testIdentityVersions},
		{"MembersAndAliases", testMembersAndAliases},
		{"Nutrients", testNutrients},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := open(t)
			defer st.Close()
			tt.fn(t, st)
		})
	}
}

func id64(v int64) *int64 { return &v }

// Batch builds a run with n winners where the first mapped of them are
// mapped and the rest no_match.
func Batch(runID string, n, mapped int) store.RunBatch {
	b := store.RunBatch{Run: store.MappingRun{
		ID:               runID,
		ConfigHash:       "0123456789abcdef",
		Status:           store.RunStaging,
		Strategy:         "cross_product",
		TokenizerVersion: "tok-v1",
		RuleVersion:      "canon-v1",
		CatalogSize:      10,
		CreatedAt:        time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}
	for i := 0; i < n; i++ {
		w := store.Winner{
			IngredientKey:  fmt.Sprintf("%s-ingredient-%03d", runID, i),
			IngredientText: fmt.Sprintf("ingredient %d", i),
			Frequency:      int64(i + 1),
			Status:         store.StatusNoMatch,
			ReasonCodes:    []string{"token_overlap:none"},
		}
		if i < mapped {
			w.Status = store.StatusMapped
			w.Score = 0.9
			w.MatchedExternalID = id64(int64(1000 + i))
			w.ReasonCodes = []string{"token_overlap:high", "jw:high", "segment:primary_strong"}
			w.Breakdown = &store.Breakdown{Overlap: 1, JWRaw: 1, JWGated: 1, Segment: 1, SegmentLevel: "primary_strong"}
		}
		b.Run.Summary.Add(w.Status)
		b.Winners = append(b.Winners, w)
	}
	return b
}

func testCanonical(t *testing.T, st store.Store) {
	ctx := context.Background()
	recs := []store.CanonicalRecord{
		{ExternalID: 2, Level: store.LevelSpecific, Name: "black pepper", Slug: "black-pepper", RemovedTokens: []string{"spices"}, RuleVersion: "canon-v1"},
		{ExternalID: 2, Level: store.LevelBase, Name: "pepper", Slug: "pepper", RemovedTokens: []string{"spices"}, RuleVersion: "canon-v1"},
		{ExternalID: 1, Level: store.LevelBase, Name: "beer", Slug: "beer", RuleVersion: "canon-v1"},
	}
	if err := st.PutCanonical(ctx, recs); err != nil {
		t.Fatalf("PutCanonical: %v", err)
	}

	got, err := st.GetCanonical(ctx, 2, store.LevelSpecific)
	if err != nil {
		t.Fatalf("GetCanonical: %v", err)
	}
	if got.Slug != "black-pepper" || len(got.RemovedTokens) != 1 || got.RemovedTokens[0] != "spices" {
		t.Errorf("GetCanonical = %+v", got)
	}

	if _, err := st.GetCanonical(ctx, 3, store.LevelBase); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("missing record error = %v, want ErrNotFound", err)
	}

	all, err := st.CanonicalRecords(ctx)
	if err != nil {
		t.Fatalf("CanonicalRecords: %v", err)
	}
	if len(all) != 3 || all[0].ExternalID != 1 || all[1].Level != store.LevelBase {
		t.Errorf("CanonicalRecords order = %+v", all)
	}

	recs[1].Name = "peppers"
	if err := st.PutCanonical(ctx, recs[1:2]); err != nil {
		t.Fatalf("PutCanonical update: %v", err)
	}
	got, _ = st.GetCanonical(ctx, 2, store.LevelBase)
	if got.Name != "peppers" {
		t.Errorf("update not applied: %+v", got)
	}
}

func testRunLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()

	if _, err := st.CurrentRun(ctx); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("CurrentRun on empty store = %v, want ErrNotFound", err)
	}

	if err := st.SaveRun(ctx, Batch("run-a", 3, 2)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.Promote(ctx, "run-a"); !errors.Is(err, internalerr.ErrInvalidState) {
		t.Errorf("Promote staging = %v, want ErrInvalidState", err)
	}
	if err := st.Promote(ctx, "run-missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Promote missing = %v, want ErrNotFound", err)
	}

	if err := st.SetRunStatus(ctx, "run-a", store.RunStaging, store.RunValidated); err != nil {
		t.Fatalf("SetRunStatus: %v", err)
	}
	if err := st.SetRunStatus(ctx, "run-a", store.RunStaging, store.RunValidated); !errors.Is(err, internalerr.ErrInvalidState) {
		t.Errorf("second transition = %v, want ErrInvalidState", err)
	}
	if err := st.Promote(ctx, "run-a"); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	if err := st.SaveRun(ctx, Batch("run-b", 3, 1)); err != nil {
		t.Fatalf("SaveRun b: %v", err)
	}
	cur, err := st.CurrentRun(ctx)
	if err != nil || cur.ID != "run-a" {
		t.Fatalf("CurrentRun = %+v, %v; want run-a", cur, err)
	}

	if err := st.SetRunStatus(ctx, "run-b", store.RunStaging, store.RunValidated); err != nil {
		t.Fatalf("SetRunStatus b: %v", err)
	}
	if err := st.Promote(ctx, "run-b"); err != nil {
		t.Fatalf("Promote b: %v", err)
	}
	run, winners, err := st.CurrentWinners(ctx)
	if err != nil {
		t.Fatalf("CurrentWinners: %v", err)
	}
	if run.ID != "run-b" || run.Summary.Mapped != 1 || len(winners) != 3 {
		t.Errorf("CurrentWinners = %+v (%d winners)", run, len(winners))
	}

	// rollback by re-pointing
	if err := st.Promote(ctx, "run-a"); err != nil {
		t.Fatalf("Promote rollback: %v", err)
	}
	cur, _ = st.CurrentRun(ctx)
	if cur.ID != "run-a" {
		t.Errorf("after rollback current = %s, want run-a", cur.ID)
	}

	runs, err := st.ListRuns(ctx)
	if err != nil || len(runs) != 2 {
		t.Fatalf("ListRuns = %d runs, %v", len(runs), err)
	}
}

func testRunRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()
	b := Batch("run-rt", 2, 1)
	b.NearTies = []store.NearTie{
		{IngredientKey: b.Winners[0].IngredientKey, Rank: 2, ExternalID: 7, Score: 0.86},
		{IngredientKey: b.Winners[0].IngredientKey, Rank: 1, ExternalID: 5, Score: 0.88},
	}
	if err := st.SaveRun(ctx, b); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run, err := st.GetRun(ctx, "run-rt")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Summary != b.Run.Summary || run.ConfigHash != b.Run.ConfigHash || run.Status != store.RunStaging {
		t.Errorf("GetRun = %+v", run)
	}
	if !run.CreatedAt.Equal(b.Run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, b.Run.CreatedAt)
	}

	winners, err := st.Winners(ctx, "run-rt")
	if err != nil {
		t.Fatalf("Winners: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("len(winners) = %d", len(winners))
	}
	w := winners[0]
	if w.MatchedExternalID == nil || *w.MatchedExternalID != 1000 {
		t.Errorf("matched id = %v", w.MatchedExternalID)
	}
	if w.Breakdown == nil || w.Breakdown.SegmentLevel != "primary_strong" {
		t.Errorf("breakdown = %+v", w.Breakdown)
	}
	if len(w.ReasonCodes) != 3 {
		t.Errorf("reason codes = %v", w.ReasonCodes)
	}
	if winners[1].MatchedExternalID != nil || winners[1].Breakdown != nil {
		t.Errorf("no_match winner = %+v", winners[1])
	}

	ties, err := st.NearTies(ctx, "run-rt", w.IngredientKey)
	if err != nil {
		t.Fatalf("NearTies: %v", err)
	}
	if len(ties) != 2 || ties[0].ExternalID != 5 || ties[1].ExternalID != 7 {
		t.Errorf("NearTies = %+v", ties)
	}

	if _, err := st.Winners(ctx, "run-missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Winners missing = %v, want ErrNotFound", err)
	}
}

func testDuplicateRun(t *testing.T, st store.Store) {
	ctx := context.Background()
	if err := st.SaveRun(ctx, Batch("run-dup", 2, 2)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.SaveRun(ctx, Batch("run-dup", 5, 0)); err == nil {
		t.Fatal("expected error saving a run id twice")
	}
	run, err := st.GetRun(ctx, "run-dup")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Summary.Mapped != 2 || run.Summary.Ingredients != 2 {
		t.Errorf("original run was modified: %+v", run.Summary)
	}
}

// testPromotionAtomicity flips the current pointer between two runs while
// readers check that every snapshot is one complete run.
func testPromotionAtomicity(t *testing.T, st store.Store) {
	ctx := context.Background()
	runs := map[string]store.RunBatch{
		"run-r1": Batch("run-r1", 20, 5),
		"run-r2": Batch("run-r2", 30, 25),
	}
	for id, b := range runs {
		if err := st.SaveRun(ctx, b); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
		if err := st.SetRunStatus(ctx, id, store.RunStaging, store.RunValidated); err != nil {
			t.Fatalf("SetRunStatus %s: %v", id, err)
		}
	}
	if err := st.Promote(ctx, "run-r1"); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errCh := make(chan error, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				run, winners, err := st.CurrentWinners(ctx)
				if err != nil {
					errCh <- err
					return
				}
				want := runs[run.ID]
				if len(winners) != len(want.Winners) {
					errCh <- fmt.Errorf("run %s: %d winners, want %d", run.ID, len(winners), len(want.Winners))
					return
				}
				for _, w := range winners {
					if w.RunID != run.ID {
						errCh <- fmt.Errorf("run %s snapshot holds winner of %s", run.ID, w.RunID)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 40; i++ {
		target := "run-r2"
		if i%2 == 1 {
			target = "run-r1"
		}
		if err := st.Promote(ctx, target); err != nil {
			t.Errorf("Promote %s: %v", target, err)
			break
		}
	}
	close(stop)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func testIdentityVersions(t *testing.T, st store.Store) {
	ctx := context.Background()

	first, err := st.UpsertIdentity(ctx, store.Identity{Slug: "pepper", Name: "pepper", Level: store.LevelBase, Rank: 2})
	if err != nil {
		t.Fatalf("UpsertIdentity: %v", err)
	}
	if first.Version != 1 || first.ID == 0 {
		t.Errorf("first = %+v", first)
	}

	same, err := st.UpsertIdentity(ctx, store.Identity{Slug: "pepper", Name: "pepper", Level: store.LevelBase, Rank: 1})
	if err != nil {
		t.Fatalf("UpsertIdentity same: %v", err)
	}
	if same.ID != first.ID || same.Rank != 1 || same.Version != 1 {
		t.Errorf("unchanged name should update in place: %+v", same)
	}

	renamed, err := st.UpsertIdentity(ctx, store.Identity{Slug: "pepper", Name: "Pepper", Level: store.LevelBase, Rank: 1})
	if err != nil {
		t.Fatalf("UpsertIdentity renamed: %v", err)
	}
	if renamed.ID == first.ID || renamed.Version != 2 {
		t.Errorf("rename should create version 2: %+v", renamed)
	}

	live, err := st.IdentityBySlug(ctx, "pepper")
	if err != nil || live.ID != renamed.ID || live.Name != "Pepper" {
		t.Errorf("IdentityBySlug = %+v, %v", live, err)
	}

	if _, err := st.UpsertIdentity(ctx, store.Identity{Slug: "beer", Name: "beer", Level: store.LevelBase, Rank: 1}); err != nil {
		t.Fatalf("UpsertIdentity beer: %v", err)
	}
	all, err := st.Identities(ctx)
	if err != nil {
		t.Fatalf("Identities: %v", err)
	}
	if len(all) != 2 || all[0].Slug != "beer" || all[1].Slug != "pepper" || all[1].Version != 2 {
		t.Errorf("Identities = %+v", all)
	}

	if _, err := st.IdentityBySlug(ctx, "salt"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("missing identity = %v, want ErrNotFound", err)
	}
	if _, err := st.UpsertIdentity(ctx, store.Identity{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("empty slug = %v, want ErrInvalidInput", err)
	}
}

func testMembersAndAliases(t *testing.T, st store.Store) {
	ctx := context.Background()
	id, err := st.UpsertIdentity(ctx, store.Identity{Slug: "milk", Name: "milk", Level: store.LevelBase, Rank: 1})
	if err != nil {
		t.Fatalf("UpsertIdentity: %v", err)
	}

	members := []store.Membership{
		{ExternalID: 30, Reason: "canonical:base", Weight: 1},
		{ExternalID: 10, Reason: "canonical:base", Weight: 1},
		{ExternalID: 10, Reason: "match:mapped", Weight: 0.92},
	}
	if err := st.ReplaceMembers(ctx, id.ID, members); err != nil {
		t.Fatalf("ReplaceMembers: %v", err)
	}
	got, err := st.Members(ctx, id.ID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(got) != 3 || got[0].ExternalID != 10 || got[0].Reason != "canonical:base" || got[2].ExternalID != 30 {
		t.Errorf("Members = %+v", got)
	}

	if err := st.ReplaceMembers(ctx, id.ID, members[:1]); err != nil {
		t.Fatalf("ReplaceMembers shrink: %v", err)
	}
	got, _ = st.Members(ctx, id.ID)
	if len(got) != 1 {
		t.Errorf("members not replaced: %+v", got)
	}

	if err := st.ReplaceMembers(ctx, 9999, members); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("ReplaceMembers unknown identity = %v, want ErrNotFound", err)
	}

	if err := st.UpsertAlias(ctx, store.Alias{Alias: "whole-milk", IdentityID: id.ID, RunID: "run-x"}); err != nil {
		t.Fatalf("UpsertAlias: %v", err)
	}
	resolved, err := st.ResolveAlias(ctx, "whole-milk")
	if err != nil || resolved.Slug != "milk" {
		t.Errorf("ResolveAlias = %+v, %v", resolved, err)
	}
	if _, err := st.ResolveAlias(ctx, "skim-milk"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("unknown alias = %v, want ErrNotFound", err)
	}
	if err := st.UpsertAlias(ctx, store.Alias{Alias: "x", IdentityID: 9999}); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("alias to unknown identity = %v, want ErrNotFound", err)
	}
}

func testNutrients(t *testing.T, st store.Store) {
	ctx := context.Background()
	id, err := st.UpsertIdentity(ctx, store.Identity{Slug: "almonds", Name: "almonds", Level: store.LevelBase, Rank: 1})
	if err != nil {
		t.Fatalf("UpsertIdentity: %v", err)
	}

	amounts := []store.NutrientAmount{
		{ExternalID: 2, NutrientID: 1003, Name: "Protein", Unit: "G", Amount: 21.2},
		{ExternalID: 1, NutrientID: 1008, Name: "Energy", Unit: "KCAL", Amount: 579},
		{ExternalID: 1, NutrientID: 1003, Name: "Protein", Unit: "G", Amount: 21.1},
		{ExternalID: 3, NutrientID: 1003, Name: "Protein", Unit: "G", Amount: 20.0},
	}
	if err := st.PutNutrientAmounts(ctx, amounts); err != nil {
		t.Fatalf("PutNutrientAmounts: %v", err)
	}
	got, err := st.NutrientAmounts(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("NutrientAmounts: %v", err)
	}
	if len(got) != 3 || got[0].ExternalID != 1 || got[0].NutrientID != 1003 || got[2].ExternalID != 2 {
		t.Errorf("NutrientAmounts = %+v", got)
	}
	if none, _ := st.NutrientAmounts(ctx, nil); len(none) != 0 {
		t.Errorf("NutrientAmounts(nil) = %+v", none)
	}

	p := 20.5
	bounds := []store.NutrientBoundary{
		{NutrientID: 1008, Unit: "KCAL", Median: 579, Min: 579, Max: 579, SampleCount: 1, TotalMemberCount: 3},
		{NutrientID: 1003, Unit: "G", Median: 21.1, P10: &p, P25: &p, P75: &p, P90: &p, Min: 20, Max: 21.2, SampleCount: 3, TotalMemberCount: 3},
	}
	if err := st.ReplaceBoundaries(ctx, id.ID, bounds); err != nil {
		t.Fatalf("ReplaceBoundaries: %v", err)
	}
	gotB, err := st.Boundaries(ctx, id.ID)
	if err != nil {
		t.Fatalf("Boundaries: %v", err)
	}
	if len(gotB) != 2 || gotB[0].NutrientID != 1003 || gotB[0].P10 == nil || *gotB[0].P10 != 20.5 {
		t.Errorf("Boundaries = %+v", gotB)
	}
	if gotB[1].P10 != nil || gotB[1].SampleCount != 1 {
		t.Errorf("small-sample boundary = %+v", gotB[1])
	}

	if err := st.ReplaceBoundaries(ctx, id.ID, bounds[:1]); err != nil {
		t.Fatalf("ReplaceBoundaries again: %v", err)
	}
	gotB, _ = st.Boundaries(ctx, id.ID)
	if len(gotB) != 1 || gotB[0].NutrientID != 1008 {
		t.Errorf("boundaries not replaced wholesale: %+v", gotB)
	}
}
