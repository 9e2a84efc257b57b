// Package routing expands a reward credited to a contract address into
// final per-account balances, following redirects and recursing into
// AMM pools and ERC-20 holder sets. Direct generalization of
// _get_rewards/get_rewards in
// original_source/oracle/oracle/distributor/rewards.py.
package routing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/oracle-keeper/validator/pkg/chainutil"
	"github.com/oracle-keeper/validator/pkg/types"
)

// BalanceSource resolves the balances and total supply backing a
// routable contract's distribution, per spec.md 4.6's four fetch
// strategies.
type BalanceSource interface {
	// Balances returns (account -> balance units, total supply) for
	// contract, where "units" are token amounts or raw liquidity
	// depending on the strategy.
	Balances(ctx context.Context, contract types.Address) (map[types.Address]*big.Int, *big.Int, error)
}

// Engine expands rewards through the redirect/pool/holder graph.
type Engine struct {
	// Redirects maps a contract to the address its rewards should
	// actually be credited against.
	Redirects map[types.Address]types.Address
	// Routable reports whether a contract is a known AMM pool or
	// ERC-20 distributor token, i.e. a target _expand should recurse
	// into rather than crediting directly.
	Routable map[types.Address]bool
	// Sources resolves which BalanceSource backs a given routable
	// contract (one of the four strategies in balances.go).
	Sources map[types.Address]BalanceSource
	// RewardToken is the token every non-liquidity credit is denominated in.
	RewardToken    types.Address
	FallbackAddress types.Address
}

// GetRewards is the routing engine's entrypoint for one credited amount.
func (e *Engine) GetRewards(ctx context.Context, contract types.Address, reward *big.Int) (*types.Rewards, error) {
	out := types.NewRewards()
	if reward == nil || reward.Sign() <= 0 {
		return out, nil
	}

	visited := map[types.Address]struct{}{}
	target := contract
	if redirect, ok := e.Redirects[target]; ok {
		visited[target] = struct{}{}
		target = redirect
	}

	if !e.Routable[target] {
		out.Add(e.FallbackAddress, e.RewardToken, types.NewAmount(reward))
		return out, nil
	}

	visited[target] = struct{}{}
	expanded, err := e.expand(ctx, target, reward, visited)
	if err != nil {
		return nil, err
	}
	out.Merge(expanded)
	return out, nil
}

// expand resolves balances for contract and distributes total across
// its accounts in ascending address order, recursing into any
// sub-routable account and merging the result.
func (e *Engine) expand(ctx context.Context, contract types.Address, total *big.Int, visited map[types.Address]struct{}) (*types.Rewards, error) {
	out := types.NewRewards()

	source, ok := e.Sources[contract]
	if !ok {
		return nil, fmt.Errorf("routing: no balance source registered for %s", contract.Hex())
	}
	balances, totalSupply, err := source.Balances(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("routing: fetch balances for %s: %w", contract.Hex(), err)
	}

	if totalSupply == nil || totalSupply.Sign() <= 0 {
		out.Add(e.FallbackAddress, e.RewardToken, types.NewAmount(total))
		return out, nil
	}

	accounts := make([]types.Address, 0, len(balances))
	for a := range balances {
		accounts = append(accounts, a)
	}
	accounts = chainutil.SortAddresses(accounts)
	if len(accounts) == 0 {
		out.Add(e.FallbackAddress, e.RewardToken, types.NewAmount(total))
		return out, nil
	}

	distributed := big.NewInt(0)
	lastIdx := len(accounts) - 1
	for i, a := range accounts {
		var share *big.Int
		if i < lastIdx {
			share = new(big.Int).Mul(total, balances[a])
			share.Div(share, totalSupply)
		} else {
			share = new(big.Int).Sub(total, distributed)
		}
		if share.Sign() <= 0 {
			continue
		}

		branchVisited := copyVisited(visited)

		target := a
		if redirect, ok := e.Redirects[target]; ok {
			branchVisited[target] = struct{}{}
			target = redirect
		}

		switch {
		case target == contract:
			out.Add(e.FallbackAddress, e.RewardToken, types.NewAmount(share))
		default:
			if _, seen := branchVisited[target]; seen {
				out.Add(e.FallbackAddress, e.RewardToken, types.NewAmount(share))
			} else if e.Routable[target] {
				branchVisited[target] = struct{}{}
				sub, err := e.expand(ctx, target, share, branchVisited)
				if err != nil {
					return nil, err
				}
				out.Merge(sub)
			} else {
				out.Add(target, e.RewardToken, types.NewAmount(share))
			}
		}

		distributed.Add(distributed, share)
	}

	return out, nil
}

// copyVisited returns a fresh copy of visited so sibling branches of the
// same recursion level never alias each other's visited set, matching
// Python's immutable visited.union({x}) update semantics.
func copyVisited(visited map[types.Address]struct{}) map[types.Address]struct{} {
	out := make(map[types.Address]struct{}, len(visited)+1)
	for k := range visited {
		out[k] = struct{}{}
	}
	return out
}
