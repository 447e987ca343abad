package match

import (
	"context"
	"fmt"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// ValidateRun recounts a staging run's winners and marks it validated when
// the stored summary agrees with them.
func ValidateRun(ctx context.Context, st store.Store, runID string) (store.MappingRun, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return store.MappingRun{}, err
	}
	if run.Status != store.RunStaging {
		return store.MappingRun{}, fmt.Errorf("%w: run %s is %s, want %s",
			internalerr.ErrInvalidState, runID, run.Status, store.RunStaging)
	}

	winners, err := st.Winners(ctx, runID)
	if err != nil {
		return store.MappingRun{}, err
	}
	var recount store.RunSummary
	for _, w := range winners {
		recount.Add(w.Status)
	}
	if recount != run.Summary {
		return store.MappingRun{}, fmt.Errorf("%w: run %s summary %+v does not match winners %+v",
			internalerr.ErrInvalidState, runID, run.Summary, recount)
	}

	if err := st.SetRunStatus(ctx, runID, store.RunStaging, store.RunValidated); err != nil {
		return store.MappingRun{}, err
	}
	run.Status = store.RunValidated
	return run, nil
}

// PromoteRun makes a validated run current. Promoting an older validated
// run rolls the live mapping back to it.
func PromoteRun(ctx context.Context, st store.Store, runID string) error {
	return st.Promote(ctx, runID)
}
