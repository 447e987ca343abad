package memstore

import (
	"context"
	"testing"

	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store/storetest"
)

func TestStoreBehaviour(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestWinnersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.SaveRun(ctx, storetest.Batch("run-copy", 1, 1)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	winners, _ := s.Winners(ctx, "run-copy")
	*winners[0].MatchedExternalID = 42
	winners[0].ReasonCodes[0] = "tampered"
	winners[0].Breakdown.Overlap = 0

	again, _ := s.Winners(ctx, "run-copy")
	if *again[0].MatchedExternalID == 42 || again[0].ReasonCodes[0] == "tampered" || again[0].Breakdown.Overlap == 0 {
		t.Errorf("stored winner was mutated through a returned copy: %+v", again[0])
	}
}
