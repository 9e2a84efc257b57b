// Package rewardsagg computes the rewards vote: the pool's total accrued
// rewards and activated validator count as of a target beacon epoch,
// grounded on spec.md 4.4's update_time/epoch derivation.
package rewardsagg

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/oracle-keeper/validator/pkg/anchor"
	"github.com/oracle-keeper/validator/pkg/beacon"
	"github.com/oracle-keeper/validator/pkg/chainutil"
	"github.com/oracle-keeper/validator/pkg/types"
)

// pendingStatuses are excluded from activation counting, matching
// spec.md 4.4's {pending_initialized, pending_queued} exclusion set.
var pendingStatuses = map[string]bool{
	"pending_initialized": true,
	"pending_queued":      true,
}

// Vote is the rewards aggregator's output for one tick.
type Vote struct {
	Nonce               types.VotingNonce
	ActivatedValidators int64
	TotalRewards        *big.Int
	Skipped             bool // true if update_time has not yet elapsed
}

// Inputs bundles everything Compute needs from the rest of the system.
type Inputs struct {
	Nonce                         types.VotingNonce
	LastUpdateTime                types.UnixTime
	SyncPeriod                    time.Duration
	Now                           types.UnixTime
	GenesisTime                   int64
	SecondsPerEpoch               int64
	SlotsPerEpoch                 int64
	PreviousTotalRewardsFromVotes *big.Int
	ValidatorPubkeys              []string
	Beacon                        *beacon.Client
	PollInterval                  time.Duration
}

// Compute advances update_time from LastUpdateTime by whole SyncPeriod
// steps for as long as the next step does not pass Now; if not even one
// step fits, the vote is skipped this tick. Otherwise it waits for beacon
// finality to reach the derived epoch and tallies validator balances at
// that slot.
func Compute(ctx context.Context, in Inputs) (Vote, error) {
	syncSeconds := int64(in.SyncPeriod / time.Second)
	updateTime := in.LastUpdateTime
	advanced := false
	for int64(updateTime)+syncSeconds <= int64(in.Now) {
		updateTime += types.UnixTime(syncSeconds)
		advanced = true
	}
	if !advanced {
		return Vote{Nonce: in.Nonce, Skipped: true}, nil
	}

	epoch := anchor.CurrentBeaconEpoch(updateTime, in.GenesisTime, in.SecondsPerEpoch)

	if err := awaitFinalized(ctx, in.Beacon, epoch, in.PollInterval); err != nil {
		return Vote{}, err
	}

	slot := epoch * uint64(in.SlotsPerEpoch)
	validators, err := in.Beacon.Validators(ctx, fmt.Sprintf("%d", slot), in.ValidatorPubkeys)
	if err != nil {
		return Vote{}, fmt.Errorf("rewardsagg: fetch validators: %w", err)
	}

	var activated int64
	totalRewards := big.NewInt(0)
	for _, v := range validators {
		if pendingStatuses[v.Status] {
			continue
		}
		activated++
		balanceWei := chainutil.GweiToWei(v.Balance)
		totalRewards.Add(totalRewards, chainutil.SubtractPrincipal(balanceWei, 32))
	}

	if in.PreviousTotalRewardsFromVotes != nil && totalRewards.Cmp(in.PreviousTotalRewardsFromVotes) < 0 {
		totalRewards = new(big.Int).Set(in.PreviousTotalRewardsFromVotes)
	}

	return Vote{
		Nonce:               in.Nonce,
		ActivatedValidators: activated,
		TotalRewards:        totalRewards,
	}, nil
}

// awaitFinalized cooperatively suspends until the beacon's finalized
// checkpoint reaches targetEpoch or ctx is cancelled.
func awaitFinalized(ctx context.Context, client *beacon.Client, targetEpoch uint64, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		cp, err := client.FinalityCheckpoints(ctx, "head")
		if err == nil && uint64(cp.Finalized.Epoch) >= targetEpoch {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
