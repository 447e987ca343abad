// Package rollup recomputes nutrient boundaries for every identity from the
// nutrient amounts of its members.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/stats"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

var (
	// ErrUnitMismatch marks a nutrient reported in more than one unit.
	ErrUnitMismatch = fmt.Errorf("%w: nutrient units disagree", internalerr.ErrInvalidInput)
	// ErrNonFinite marks a NaN or infinite amount.
	ErrNonFinite = fmt.Errorf("%w: non-finite nutrient amount", internalerr.ErrInvalidInput)
)

// Rollup rebuilds boundaries identity by identity. A failing identity is
// logged and counted; it never stops the batch and keeps its previous
// boundaries.
type Rollup struct {
	Store      store.Store
	MinSamples int
	Log        *zap.SugaredLogger
}

// Summary reports a rollup batch.
type Summary struct {
	Processed  int
	Failed     int
	Boundaries int
}

// Run processes every live identity. It returns early only when the
// identity list cannot be read or ctx is cancelled.
func (r *Rollup) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.Store == nil {
		return sum, errors.New("rollup: no store")
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	minSamples := r.MinSamples
	if minSamples <= 0 {
		minSamples = stats.DefaultMinSamples
	}

	ids, err := r.Store.Identities(ctx)
	if err != nil {
		return sum, fmt.Errorf("list identities: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		n, err := r.identity(ctx, id, minSamples)
		if err != nil {
			sum.Failed++
			log.Warnw("identity rollup failed",
				"identity", id.ID,
				"slug", id.Slug,
				"failures", sum.Failed,
				"error", err,
			)
			continue
		}
		sum.Processed++
		sum.Boundaries += n
	}

	log.Infow("nutrient rollup finished",
		"processed", sum.Processed,
		"failed", sum.Failed,
		"boundaries", sum.Boundaries,
	)
	return sum, nil
}

func (r *Rollup) identity(ctx context.Context, id store.Identity, minSamples int) (int, error) {
	members, err := r.Store.Members(ctx, id.ID)
	if err != nil {
		return 0, err
	}
	extIDs := distinctExternalIDs(members)

	var amounts []store.NutrientAmount
	if len(extIDs) > 0 {
		amounts, err = r.Store.NutrientAmounts(ctx, extIDs)
		if err != nil {
			return 0, err
		}
	}

	bounds, err := Compute(id.ID, amounts, len(extIDs), minSamples)
	if err != nil {
		return 0, err
	}
	if err := r.Store.ReplaceBoundaries(ctx, id.ID, bounds); err != nil {
		return 0, err
	}
	return len(bounds), nil
}

// Compute groups amounts by nutrient and derives one boundary per
// nutrient, ordered by nutrient id. Any unit disagreement or non-finite
// amount fails the whole set.
func Compute(identityID int64, amounts []store.NutrientAmount, totalMembers, minSamples int) ([]store.NutrientBoundary, error) {
	type group struct {
		name   string
		unit   string
		values []float64
	}
	groups := make(map[int64]*group)
	for _, a := range amounts {
		if math.IsNaN(a.Amount) || math.IsInf(a.Amount, 0) {
			return nil, fmt.Errorf("%w: nutrient %d of entry %d", ErrNonFinite, a.NutrientID, a.ExternalID)
		}
		g := groups[a.NutrientID]
		if g == nil {
			g = &group{name: a.Name, unit: a.Unit}
			groups[a.NutrientID] = g
		}
		if g.unit != a.Unit {
			return nil, fmt.Errorf("%w: nutrient %d has %q and %q", ErrUnitMismatch, a.NutrientID, g.unit, a.Unit)
		}
		g.values = append(g.values, a.Amount)
	}

	nutrientIDs := make([]int64, 0, len(groups))
	for id := range groups {
		nutrientIDs = append(nutrientIDs, id)
	}
	sort.Slice(nutrientIDs, func(i, j int) bool { return nutrientIDs[i] < nutrientIDs[j] })

	out := make([]store.NutrientBoundary, 0, len(nutrientIDs))
	for _, nid := range nutrientIDs {
		g := groups[nid]
		b, err := stats.ComputeWithMin(g.values, totalMembers, minSamples)
		if err != nil {
			return nil, fmt.Errorf("nutrient %d: %w", nid, err)
		}
		out = append(out, store.NutrientBoundary{
			IdentityID:       identityID,
			NutrientID:       nid,
			Name:             g.name,
			Unit:             g.unit,
			Median:           b.Median,
			P10:              b.P10,
			P25:              b.P25,
			P75:              b.P75,
			P90:              b.P90,
			Min:              b.Min,
			Max:              b.Max,
			SampleCount:      b.SampleCount,
			TotalMemberCount: b.TotalMemberCount,
		})
	}
	return out, nil
}

func distinctExternalIDs(members []store.Membership) []int64 {
	seen := make(map[int64]struct{}, len(members))
	out := make([]int64, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.ExternalID]; ok {
			continue
		}
		seen[m.ExternalID] = struct{}{}
		out = append(out, m.ExternalID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
