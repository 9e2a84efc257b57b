// Package distribution plans how a tick's rewards are split into
// per-recipient Distribution records before being handed to the routing
// engine, grounded on spec.md 4.5 and original_source's periodic
// allocation/disabled-staker/protocol-share/one-time-distribution rules.
package distribution

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"

	"github.com/oracle-keeper/validator/pkg/ipfs"
	"github.com/oracle-keeper/validator/pkg/types"
)

// BlocksInterval is the fixed slice width periodic allocations are split
// into. Tuning-sensitive: original_source/uniswap_v3.py carries the same
// warning that changing this retroactively breaks previously computed
// splits.
const BlocksInterval = 277

// PeriodicAllocation is one indexer row describing a reward committed
// across a block range to a beneficiary contract (a Uniswap V3 pool in
// practice), to be expanded into final accounts by the routing engine.
type PeriodicAllocation struct {
	Start, End types.BlockHeight
	Reward     *big.Int
	Token      types.Address
	Contract   types.Address
	UniV3Token types.Address
}

// DisabledStaker is a staker who opted out of auto-compounding rewards.
type DisabledStaker struct {
	Account               types.Address
	PrincipalBalance      *big.Int
	StakerRewardPerToken  *big.Int
}

// OneTimeRow references a beneficiary blob pinned at from_block < h <= to_block.
type OneTimeRow struct {
	Block       types.BlockHeight
	RewardsLink string
	Amount      *big.Int
	Token       types.Address
}

// PlanInputs bundles everything the planner needs for one tick.
type PlanInputs struct {
	FromBlock, ToBlock    types.BlockHeight
	DistributorReward     *big.Int
	ProtocolReward        *big.Int
	RewardToken           types.Address
	RewardPerTokenGlobal  *big.Int
	PeriodicAllocations   []PeriodicAllocation
	DisabledStakers       []DisabledStaker
	OneTimeRows           []OneTimeRow
	OperatorAddress       types.Address
	FallbackAddress       types.Address
	IPFS                  *ipfs.Client
}

// Plan composes the tick's reward emitters. Periodic allocations are
// returned as contract-targeted Distribution records for the caller to
// expand through the routing engine; disabled-staker, protocol-share,
// and one-time rewards already resolve to final accounts and are
// returned as a credited Rewards ledger.
func Plan(ctx context.Context, in PlanInputs) ([]types.Distribution, *types.Rewards, error) {
	routable := periodicAllocations(in)

	rewards := types.NewRewards()
	disabledStakerDistribution(rewards, in)
	protocolShare(rewards, in)
	if err := oneTimeDistributions(ctx, rewards, in); err != nil {
		return nil, nil, err
	}

	return routable, rewards, nil
}

// periodicAllocations clips each allocation to
// [max(a.Start, FromBlock), min(a.End, ToBlock)] and splits the clipped
// span into fixed-width BlocksInterval slices, returning one
// contract-targeted Distribution per slice. The allocation's rounding
// remainder is only added once, on the slice whose end reaches a.End,
// matching get_uniswap_v3_distributions so a long-lived allocation is
// never re-credited on a later tick.
func periodicAllocations(in PlanInputs) []types.Distribution {
	var out []types.Distribution
	for _, a := range in.PeriodicAllocations {
		if !(a.End > in.FromBlock && a.Start < in.ToBlock) {
			continue
		}

		totalBlocks := int64(a.End - a.Start)
		if totalBlocks <= 0 {
			continue
		}
		rewardPerBlock := new(big.Int).Div(a.Reward, big.NewInt(totalBlocks))
		intervalReward := new(big.Int).Mul(rewardPerBlock, big.NewInt(BlocksInterval))
		spentAcrossWholeSpan := new(big.Int).Mul(rewardPerBlock, big.NewInt(totalBlocks))

		start := a.Start
		if in.FromBlock > start {
			start = in.FromBlock
		}
		end := a.End
		if in.ToBlock < end {
			end = in.ToBlock
		}

		for start != end {
			if start+types.BlockHeight(BlocksInterval) > end {
				interval := int64(end - start)
				reward := new(big.Int).Mul(rewardPerBlock, big.NewInt(interval))
				if end == a.End {
					reward.Add(reward, new(big.Int).Sub(a.Reward, spentAcrossWholeSpan))
				}
				if reward.Sign() > 0 {
					out = append(out, types.Distribution{
						Contract:    a.Contract,
						FromBlock:   start,
						ToBlock:     end,
						RewardToken: a.Token,
						Reward:      types.NewAmount(reward),
						UniV3Token:  a.UniV3Token,
					})
				}
				break
			}

			if intervalReward.Sign() > 0 {
				out = append(out, types.Distribution{
					Contract:    a.Contract,
					FromBlock:   start,
					ToBlock:     start + types.BlockHeight(BlocksInterval),
					RewardToken: a.Token,
					Reward:      types.NewAmount(new(big.Int).Set(intervalReward)),
					UniV3Token:  a.UniV3Token,
				})
			}
			start += types.BlockHeight(BlocksInterval)
		}
	}
	return out
}

// disabledStakerDistribution splits distributor_reward across stakers
// whose per-token reward has fallen behind the global rate, weighted by
// principal, with the last staker in iteration order absorbing the
// rounding residual.
func disabledStakerDistribution(rewards *types.Rewards, in PlanInputs) {
	var included []DisabledStaker
	for _, s := range in.DisabledStakers {
		if s.StakerRewardPerToken.Cmp(in.RewardPerTokenGlobal) < 0 && s.PrincipalBalance.Sign() > 0 {
			included = append(included, s)
		}
	}
	if len(included) == 0 || in.DistributorReward == nil || in.DistributorReward.Sign() <= 0 {
		return
	}

	totalPrincipal := big.NewInt(0)
	for _, s := range included {
		totalPrincipal.Add(totalPrincipal, s.PrincipalBalance)
	}
	if totalPrincipal.Sign() <= 0 {
		return
	}

	distributed := big.NewInt(0)
	for i, s := range included {
		var share *big.Int
		if i < len(included)-1 {
			share = new(big.Int).Mul(in.DistributorReward, s.PrincipalBalance)
			share.Div(share, totalPrincipal)
		} else {
			share = new(big.Int).Sub(in.DistributorReward, distributed)
		}
		if share.Sign() > 0 {
			rewards.Add(s.Account, in.RewardToken, types.NewAmount(share))
		}
		distributed.Add(distributed, share)
	}
}

// protocolShare credits half of protocol_reward to the configured
// operator and the other half to the fallback address.
func protocolShare(rewards *types.Rewards, in PlanInputs) {
	if in.ProtocolReward == nil || in.ProtocolReward.Sign() <= 0 {
		return
	}
	half := new(big.Int).Div(in.ProtocolReward, big.NewInt(2))
	leftover := new(big.Int).Sub(in.ProtocolReward, half)

	rewards.Add(in.OperatorAddress, in.RewardToken, types.NewAmount(half))
	rewards.Add(in.FallbackAddress, in.RewardToken, types.NewAmount(leftover))
}

// oneTimeDistributions fetches each row's beneficiary blob and credits
// it verbatim if the blob's total matches the row's committed amount;
// any fetch or validation failure routes the full amount to the
// fallback address rather than aborting the plan.
func oneTimeDistributions(ctx context.Context, rewards *types.Rewards, in PlanInputs) error {
	rows := make([]OneTimeRow, 0, len(in.OneTimeRows))
	for _, r := range in.OneTimeRows {
		if r.Block > in.FromBlock && r.Block <= in.ToBlock {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Block < rows[j].Block })

	for _, r := range rows {
		beneficiaries, err := fetchBeneficiaries(ctx, in.IPFS, r.RewardsLink)
		if err != nil {
			log.Printf("WARN distribution: one-time rewards %s routed to fallback: %v", r.RewardsLink, err)
			rewards.Add(in.FallbackAddress, r.Token, types.NewAmount(r.Amount))
			continue
		}

		total := big.NewInt(0)
		for _, amt := range beneficiaries {
			total.Add(total, amt.Int)
		}
		if total.Cmp(r.Amount) != 0 {
			log.Printf("WARN distribution: one-time rewards %s total %s does not match %s, routed to fallback", r.RewardsLink, total, r.Amount)
			rewards.Add(in.FallbackAddress, r.Token, types.NewAmount(r.Amount))
			continue
		}

		for account, amt := range beneficiaries {
			rewards.Add(account, r.Token, amt)
		}
	}
	return nil
}

func fetchBeneficiaries(ctx context.Context, client *ipfs.Client, rewardsLink string) (types.OneTimeBeneficiaries, error) {
	raw, err := client.Fetch(ctx, rewardsLink)
	if err != nil {
		return nil, fmt.Errorf("distribution: fetch one-time beneficiaries: %w", err)
	}
	return types.DecodeOneTimeBeneficiaries(raw)
}
