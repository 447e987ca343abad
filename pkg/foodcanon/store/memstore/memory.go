package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

type canonKey struct {
	externalID int64
	level      store.Level
}

type nutrientKey struct {
	externalID int64
	nutrientID int64
}

// Store is an in-memory implementation of store.Store for tests and dry
// runs. A single RWMutex makes every method atomic.
type Store struct {
	mu sync.RWMutex

	canonical map[canonKey]store.CanonicalRecord

	runs     map[string]store.MappingRun
	winners  map[string][]store.Winner
	nearTies map[string][]store.NearTie
	current  string

	nextIdentityID int64
	identities     map[int64]store.Identity
	latest         map[string]int64 // slug → live identity id
	members        map[int64][]store.Membership
	aliases        map[string]store.Alias

	amounts    map[nutrientKey]store.NutrientAmount
	boundaries map[int64][]store.NutrientBoundary
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		canonical:      make(map[canonKey]store.CanonicalRecord),
		runs:           make(map[string]store.MappingRun),
		winners:        make(map[string][]store.Winner),
		nearTies:       make(map[string][]store.NearTie),
		nextIdentityID: 1,
		identities:     make(map[int64]store.Identity),
		latest:         make(map[string]int64),
		members:        make(map[int64][]store.Membership),
		aliases:        make(map[string]store.Alias),
		amounts:        make(map[nutrientKey]store.NutrientAmount),
		boundaries:     make(map[int64][]store.NutrientBoundary),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// PutCanonical upserts canonical results keyed by (external id, level).
func (s *Store) PutCanonical(ctx context.Context, recs []store.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		r.RemovedTokens = append([]string(nil), r.RemovedTokens...)
		s.canonical[canonKey{r.ExternalID, r.Level}] = r
	}
	return nil
}

// GetCanonical returns one canonical result.
func (s *Store) GetCanonical(ctx context.Context, externalID int64, level store.Level) (store.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.canonical[canonKey{externalID, level}]
	if !ok {
		return store.CanonicalRecord{}, fmt.Errorf("canonical %d/%s: %w", externalID, level, internalerr.ErrNotFound)
	}
	r.RemovedTokens = append([]string(nil), r.RemovedTokens...)
	return r, nil
}

// CanonicalRecords returns every canonical result ordered by external id,
// base before specific.
func (s *Store) CanonicalRecords(ctx context.Context) ([]store.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.CanonicalRecord, 0, len(s.canonical))
	for _, r := range s.canonical {
		r.RemovedTokens = append([]string(nil), r.RemovedTokens...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExternalID != out[j].ExternalID {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].Level < out[j].Level
	})
	return out, nil
}

// SaveRun stores a run with its winners and near-ties.
func (s *Store) SaveRun(ctx context.Context, batch store.RunBatch) error {
	if batch.Run.ID == "" {
		return fmt.Errorf("save run: empty id: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[batch.Run.ID]; exists {
		return fmt.Errorf("save run %s: already exists: %w", batch.Run.ID, internalerr.ErrInvalidInput)
	}
	run := batch.Run
	if run.Status == "" {
		run.Status = store.RunStaging
	}
	winners := make([]store.Winner, len(batch.Winners))
	for i, w := range batch.Winners {
		w.RunID = run.ID
		winners[i] = copyWinner(w)
	}
	ties := make([]store.NearTie, len(batch.NearTies))
	for i, t := range batch.NearTies {
		t.RunID = run.ID
		ties[i] = t
	}
	s.runs[run.ID] = run
	s.winners[run.ID] = winners
	s.nearTies[run.ID] = ties
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (store.MappingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return store.MappingRun{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return run, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]store.MappingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.MappingRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetRunStatus moves a run from one status to another.
func (s *Store) SetRunStatus(ctx context.Context, id string, from, to store.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if run.Status != from {
		return fmt.Errorf("run %s is %s, want %s: %w", id, run.Status, from, internalerr.ErrInvalidState)
	}
	run.Status = to
	s.runs[id] = run
	return nil
}

// Winners returns a run's winners ordered by ingredient key.
func (s *Store) Winners(ctx context.Context, runID string) ([]store.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return s.winnersLocked(runID), nil
}

func (s *Store) winnersLocked(runID string) []store.Winner {
	src := s.winners[runID]
	out := make([]store.Winner, len(src))
	for i, w := range src {
		out[i] = copyWinner(w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientKey < out[j].IngredientKey })
	return out
}

// NearTies returns an ingredient's near-ties in rank order.
func (s *Store) NearTies(ctx context.Context, runID, ingredientKey string) ([]store.NearTie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.NearTie
	for _, t := range s.nearTies[runID] {
		if t.IngredientKey == ingredientKey {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// Promote points the current mapping at a validated run.
func (s *Store) Promote(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if run.Status != store.RunValidated {
		return fmt.Errorf("promote run %s: status %s: %w", runID, run.Status, internalerr.ErrInvalidState)
	}
	s.current = runID
	return nil
}

// CurrentRun returns the promoted run.
func (s *Store) CurrentRun(ctx context.Context) (store.MappingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == "" {
		return store.MappingRun{}, fmt.Errorf("current run: %w", internalerr.ErrNotFound)
	}
	return s.runs[s.current], nil
}

// CurrentWinners returns the promoted run together with its winners.
func (s *Store) CurrentWinners(ctx context.Context) (store.MappingRun, []store.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == "" {
		return store.MappingRun{}, nil, fmt.Errorf("current run: %w", internalerr.ErrNotFound)
	}
	return s.runs[s.current], s.winnersLocked(s.current), nil
}

// UpsertIdentity creates an identity, updates the rank of an unchanged
// one, or stores a new version when the name changed.
func (s *Store) UpsertIdentity(ctx context.Context, id store.Identity) (store.Identity, error) {
	if id.Slug == "" {
		return store.Identity{}, fmt.Errorf("upsert identity: empty slug: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if liveID, ok := s.latest[id.Slug]; ok {
		live := s.identities[liveID]
		if live.Name == id.Name {
			live.Rank = id.Rank
			live.Level = id.Level
			s.identities[liveID] = live
			return live, nil
		}
		id.Version = live.Version + 1
	} else {
		id.Version = 1
	}

	id.ID = s.nextIdentityID
	s.nextIdentityID++
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	s.identities[id.ID] = id
	s.latest[id.Slug] = id.ID
	return id, nil
}

// IdentityBySlug returns the live version of an identity.
func (s *Store) IdentityBySlug(ctx context.Context, slug string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.latest[slug]
	if !ok {
		return store.Identity{}, fmt.Errorf("identity %s: %w", slug, internalerr.ErrNotFound)
	}
	return s.identities[id], nil
}

// Identities returns the live identities ordered by rank, then slug.
func (s *Store) Identities(ctx context.Context) ([]store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Identity, 0, len(s.latest))
	for _, id := range s.latest {
		out = append(out, s.identities[id])
	}
	sortIdentities(out)
	return out, nil
}

// ReplaceMembers replaces an identity's membership set.
func (s *Store) ReplaceMembers(ctx context.Context, identityID int64, members []store.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identityID]; !ok {
		return fmt.Errorf("identity %d: %w", identityID, internalerr.ErrNotFound)
	}
	out := make([]store.Membership, len(members))
	for i, m := range members {
		m.IdentityID = identityID
		out[i] = m
	}
	s.members[identityID] = out
	return nil
}

// Members returns an identity's memberships ordered by external id.
func (s *Store) Members(ctx context.Context, identityID int64) ([]store.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]store.Membership(nil), s.members[identityID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExternalID != out[j].ExternalID {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].Reason < out[j].Reason
	})
	return out, nil
}

// UpsertAlias points an alias at an identity.
func (s *Store) UpsertAlias(ctx context.Context, a store.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[a.IdentityID]; !ok {
		return fmt.Errorf("identity %d: %w", a.IdentityID, internalerr.ErrNotFound)
	}
	s.aliases[a.Alias] = a
	return nil
}

// ResolveAlias returns the identity an alias points at.
func (s *Store) ResolveAlias(ctx context.Context, alias string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.aliases[alias]
	if !ok {
		return store.Identity{}, fmt.Errorf("alias %s: %w", alias, internalerr.ErrNotFound)
	}
	return s.identities[a.IdentityID], nil
}

// PutNutrientAmounts upserts amounts keyed by (external id, nutrient id).
func (s *Store) PutNutrientAmounts(ctx context.Context, amounts []store.NutrientAmount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range amounts {
		s.amounts[nutrientKey{a.ExternalID, a.NutrientID}] = a
	}
	return nil
}

// NutrientAmounts returns the amounts of the given catalog entries ordered
// by external id, then nutrient id.
func (s *Store) NutrientAmounts(ctx context.Context, externalIDs []int64) ([]store.NutrientAmount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		want[id] = struct{}{}
	}
	var out []store.NutrientAmount
	for k, a := range s.amounts {
		if _, ok := want[k.externalID]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExternalID != out[j].ExternalID {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].NutrientID < out[j].NutrientID
	})
	return out, nil
}

// ReplaceBoundaries replaces every boundary of an identity.
func (s *Store) ReplaceBoundaries(ctx context.Context, identityID int64, bounds []store.NutrientBoundary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identityID]; !ok {
		return fmt.Errorf("identity %d: %w", identityID, internalerr.ErrNotFound)
	}
	out := make([]store.NutrientBoundary, len(bounds))
	for i, b := range bounds {
		b.IdentityID = identityID
		out[i] = copyBoundary(b)
	}
	s.boundaries[identityID] = out
	return nil
}

// Boundaries returns an identity's boundaries ordered by nutrient id.
func (s *Store) Boundaries(ctx context.Context, identityID int64) ([]store.NutrientBoundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.boundaries[identityID]
	out := make([]store.NutrientBoundary, len(src))
	for i, b := range src {
		out[i] = copyBoundary(b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NutrientID < out[j].NutrientID })
	return out, nil
}

func copyWinner(w store.Winner) store.Winner {
	w.ReasonCodes = append([]string(nil), w.ReasonCodes...)
	if w.MatchedExternalID != nil {
		id := *w.MatchedExternalID
		w.MatchedExternalID = &id
	}
	if w.Breakdown != nil {
		b := *w.Breakdown
		w.Breakdown = &b
	}
	return w
}

func copyBoundary(b store.NutrientBoundary) store.NutrientBoundary {
	b.P10 = copyFloat(b.P10)
	b.P25 = copyFloat(b.P25)
	b.P75 = copyFloat(b.P75)
	b.P90 = copyFloat(b.P90)
	return b
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortIdentities(ids []store.Identity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Rank != ids[j].Rank {
			return ids[i].Rank < ids[j].Rank
		}
		return ids[i].Slug < ids[j].Slug
	})
}
