package rewardsagg

import (
	"context"
	"testing"
	"time"

	"github.com/oracle-keeper/validator/pkg/types"
)

func TestComputeSkipsBeforeSyncPeriodElapses(t *testing.T) {
	in := Inputs{
		Nonce:          9,
		LastUpdateTime: 1000,
		SyncPeriod:     24 * time.Hour,
		Now:            1000 + 100, // far short of one sync period
	}

	vote, err := Compute(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !vote.Skipped {
		t.Error("expected vote to be skipped before a full sync period has elapsed")
	}
	if vote.Nonce != in.Nonce {
		t.Errorf("expected nonce to be carried through even when skipped, got %d", vote.Nonce)
	}
}
