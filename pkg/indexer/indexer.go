// Package indexer adapts pkg/subgraph's GraphQL consensus client to the
// reader interfaces pkg/routing and pkg/registration depend on, so the
// tick loop can hand each package a concrete subgraph-backed
// implementation instead of a fake.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oracle-keeper/validator/pkg/registration"
	"github.com/oracle-keeper/validator/pkg/routing"
	"github.com/oracle-keeper/validator/pkg/subgraph"
	"github.com/oracle-keeper/validator/pkg/types"
)

// Client bundles a subgraph consensus client with the endpoint sets it
// should query; one Client backs every reader interface in this package.
type Client struct {
	Subgraph             *subgraph.Client
	UniswapV3SubgraphURLs []string
	StakewiseSubgraphURLs []string
}

// PoolState implements routing.PoolReader.
func (c *Client) PoolState(ctx context.Context, pool types.Address) (routing.PoolState, error) {
	data, err := c.Subgraph.Query(ctx, c.UniswapV3SubgraphURLs, subgraph.QueryPoolState, map[string]any{"pool": pool.Hex()})
	if err != nil {
		return routing.PoolState{}, fmt.Errorf("indexer: pool state: %w", err)
	}

	var page struct {
		Pool struct {
			Tick      string `json:"tick"`
			SqrtPrice string `json:"sqrtPrice"`
		} `json:"pool"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return routing.PoolState{}, fmt.Errorf("indexer: decode pool state: %w", err)
	}

	var tick int64
	fmt.Sscan(page.Pool.Tick, &tick)
	sqrtPrice, ok := new(big.Int).SetString(page.Pool.SqrtPrice, 10)
	if !ok {
		sqrtPrice = big.NewInt(0)
	}
	return routing.PoolState{Tick: int(tick), SqrtPrice: sqrtPrice}, nil
}

// Positions implements routing.PoolReader.
func (c *Client) Positions(ctx context.Context, pool types.Address) ([]routing.Position, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.UniswapV3SubgraphURLs, subgraph.QueryPoolPositions, map[string]any{"pool": pool.Hex()}, "positions")
	if err != nil {
		return nil, fmt.Errorf("indexer: pool positions: %w", err)
	}

	out := make([]routing.Position, 0, len(rows))
	for _, raw := range rows {
		var row struct {
			Owner     string `json:"owner"`
			TickLower struct {
				TickIdx string `json:"tickIdx"`
			} `json:"tickLower"`
			TickUpper struct {
				TickIdx string `json:"tickIdx"`
			} `json:"tickUpper"`
			Liquidity string `json:"liquidity"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("indexer: decode position: %w", err)
		}
		var lower, upper int64
		fmt.Sscan(row.TickLower.TickIdx, &lower)
		fmt.Sscan(row.TickUpper.TickIdx, &upper)
		liquidity, ok := new(big.Int).SetString(row.Liquidity, 10)
		if !ok {
			liquidity = big.NewInt(0)
		}
		out = append(out, routing.Position{
			Owner:     common.HexToAddress(row.Owner),
			TickLower: int(lower),
			TickUpper: int(upper),
			Liquidity: liquidity,
		})
	}
	return out, nil
}

// Holders implements routing.HolderReader.
func (c *Client) Holders(ctx context.Context, token types.Address) ([]routing.HolderSnapshot, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.StakewiseSubgraphURLs, subgraph.QueryTokenHolders, map[string]any{"token": token.Hex()}, "tokenHolders")
	if err != nil {
		return nil, fmt.Errorf("indexer: token holders: %w", err)
	}

	out := make([]routing.HolderSnapshot, 0, len(rows))
	for _, raw := range rows {
		var row struct {
			Account        string `json:"account"`
			Balance        string `json:"balance"`
			UpdatedAtBlock string `json:"updatedAtBlock"`
			PreviousPoints string `json:"previousPoints"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("indexer: decode holder: %w", err)
		}
		balance, ok := new(big.Int).SetString(row.Balance, 10)
		if !ok {
			balance = big.NewInt(0)
		}
		prevPoints, ok := new(big.Int).SetString(row.PreviousPoints, 10)
		if !ok {
			prevPoints = big.NewInt(0)
		}
		var updatedAt uint64
		fmt.Sscan(row.UpdatedAtBlock, &updatedAt)

		out = append(out, routing.HolderSnapshot{
			Account:        common.HexToAddress(row.Account),
			Balance:        balance,
			UpdatedAtBlock: types.BlockHeight(updatedAt),
			PreviousPoints: prevPoints,
		})
	}
	return out, nil
}

// UniswapV3PoolSet classifies every Uniswap V3 pool by which side pairs
// with one of the three named routing tokens, grounded on
// get_uniswap_v3_pools. A pool lands in more than one set when its two
// sides pair with two different named tokens.
type UniswapV3PoolSet struct {
	StakedTokenPools map[types.Address]bool
	RewardTokenPools map[types.Address]bool
	SwisePools       map[types.Address]bool
}

// DistributorRedirects implements the routing engine's redirect table,
// mapping a contract whose rewards should be credited elsewhere to its
// redirect target, grounded on get_distributor_redirects.
func (c *Client) DistributorRedirects(ctx context.Context, blockNumber types.BlockHeight) (map[types.Address]types.Address, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.StakewiseSubgraphURLs, subgraph.QueryDistributorRedirects, map[string]any{"block_number": int64(blockNumber)}, "distributorRedirects")
	if err != nil {
		return nil, fmt.Errorf("indexer: distributor redirects: %w", err)
	}

	out := make(map[types.Address]types.Address, len(rows))
	for _, raw := range rows {
		var row struct {
			ID    string `json:"id"`
			Token struct {
				ID string `json:"id"`
			} `json:"token"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("indexer: decode distributor redirect: %w", err)
		}
		out[common.HexToAddress(row.ID)] = common.HexToAddress(row.Token.ID)
	}
	return out, nil
}

// UniswapV3Pools classifies every pool by which side, if any, pairs with
// one of rewardToken/stakedToken/swiseToken, grounded on
// get_uniswap_v3_pools.
func (c *Client) UniswapV3Pools(ctx context.Context, blockNumber types.BlockHeight, rewardToken, stakedToken, swiseToken types.Address) (UniswapV3PoolSet, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.UniswapV3SubgraphURLs, subgraph.QueryUniswapV3Pools, map[string]any{"block_number": int64(blockNumber)}, "pools")
	if err != nil {
		return UniswapV3PoolSet{}, fmt.Errorf("indexer: uniswap v3 pools: %w", err)
	}

	set := UniswapV3PoolSet{
		StakedTokenPools: map[types.Address]bool{},
		RewardTokenPools: map[types.Address]bool{},
		SwisePools:       map[types.Address]bool{},
	}
	for _, raw := range rows {
		var row struct {
			ID     string `json:"id"`
			Token0 struct {
				ID string `json:"id"`
			} `json:"token0"`
			Token1 struct {
				ID string `json:"id"`
			} `json:"token1"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return UniswapV3PoolSet{}, fmt.Errorf("indexer: decode uniswap v3 pool: %w", err)
		}
		pool := common.HexToAddress(row.ID)
		for _, side := range []string{row.Token0.ID, row.Token1.ID} {
			switch common.HexToAddress(side) {
			case stakedToken:
				set.StakedTokenPools[pool] = true
			case rewardToken:
				set.RewardTokenPools[pool] = true
			case swiseToken:
				set.SwisePools[pool] = true
			}
		}
	}
	return set, nil
}

// Operators implements registration.Indexer.
func (c *Client) Operators(ctx context.Context) ([]registration.Operator, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.StakewiseSubgraphURLs, subgraph.QueryOperators, nil, "operators")
	if err != nil {
		return nil, fmt.Errorf("indexer: operators: %w", err)
	}

	out := make([]registration.Operator, 0, len(rows))
	for _, raw := range rows {
		var row struct {
			ID               string `json:"id"`
			Address          string `json:"address"`
			DepositDataIndex string `json:"depositDataIndex"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("indexer: decode operator: %w", err)
		}
		var idx int
		fmt.Sscan(row.DepositDataIndex, &idx)
		out = append(out, registration.Operator{
			ID:               row.ID,
			Address:          common.HexToAddress(row.Address),
			DepositDataIndex: idx,
		})
	}
	return out, nil
}

// LastUsedOperators implements registration.Indexer.
func (c *Client) LastUsedOperators(ctx context.Context) ([]string, error) {
	data, err := c.Subgraph.Query(ctx, c.StakewiseSubgraphURLs, subgraph.QueryLastUsedOperators, nil)
	if err != nil {
		return nil, fmt.Errorf("indexer: last used operators: %w", err)
	}

	var page struct {
		ValidatorRegistrations []struct {
			Operator struct {
				ID string `json:"id"`
			} `json:"operator"`
		} `json:"validatorRegistrations"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("indexer: decode last used operators: %w", err)
	}

	out := make([]string, 0, len(page.ValidatorRegistrations))
	for _, r := range page.ValidatorRegistrations {
		out = append(out, r.Operator.ID)
	}
	return out, nil
}

// DepositData implements registration.Indexer.
func (c *Client) DepositData(ctx context.Context, operatorID string) ([]registration.DepositDatum, error) {
	rows, err := c.Subgraph.QueryPaginated(ctx, c.StakewiseSubgraphURLs, subgraph.QueryValidatorDeposits, map[string]any{"operator": operatorID}, "deposits")
	if err != nil {
		return nil, fmt.Errorf("indexer: deposit data: %w", err)
	}

	out := make([]registration.DepositDatum, 0, len(rows))
	for _, raw := range rows {
		var row struct {
			PublicKey             string `json:"publicKey"`
			WithdrawalCredentials string `json:"withdrawalCredentials"`
			Signature             string `json:"signature"`
			DepositDataRoot       string `json:"depositDataRoot"`
			Amount                string `json:"amount"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("indexer: decode deposit: %w", err)
		}
		amount, ok := new(big.Int).SetString(row.Amount, 10)
		if !ok {
			amount = big.NewInt(0)
		}
		var root [32]byte
		copy(root[:], common.FromHex(row.DepositDataRoot))

		out = append(out, registration.DepositDatum{
			PublicKey:             common.FromHex(row.PublicKey),
			WithdrawalCredentials: common.FromHex(row.WithdrawalCredentials),
			Signature:             common.FromHex(row.Signature),
			DepositDataRoot:       root,
			Amount:                amount,
		})
	}
	return out, nil
}

// CanRegister implements registration.Indexer: a deposit key is
// registrable if the indexer has not already recorded it as an active
// validator.
func (c *Client) CanRegister(ctx context.Context, publicKey []byte) (bool, error) {
	data, err := c.Subgraph.Query(ctx, c.StakewiseSubgraphURLs, subgraph.QueryValidatorRegistered, map[string]any{"publicKey": "0x" + fmt.Sprintf("%x", publicKey)})
	if err != nil {
		return false, fmt.Errorf("indexer: can register: %w", err)
	}

	var page struct {
		Validators []struct {
			ID string `json:"id"`
		} `json:"validators"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return false, fmt.Errorf("indexer: decode can register: %w", err)
	}
	return len(page.Validators) == 0, nil
}
