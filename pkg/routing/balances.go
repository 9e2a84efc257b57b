package routing

import (
	"context"
	"math/big"

	"github.com/oracle-keeper/validator/pkg/types"
	"github.com/oracle-keeper/validator/pkg/uniswapv3"
)

// PoolState is the minimal current-state snapshot a Uniswap V3 pool
// source needs: the pool's current tick and sqrt price.
type PoolState struct {
	Tick      int
	SqrtPrice *big.Int
}

// Position is one liquidity-provider's range within a pool.
type Position struct {
	Owner     types.Address
	TickLower int
	TickUpper int
	Liquidity *big.Int
}

// PoolReader fetches a pool's current state and positions; callers
// implement it against pkg/subgraph.
type PoolReader interface {
	PoolState(ctx context.Context, pool types.Address) (PoolState, error)
	Positions(ctx context.Context, pool types.Address) ([]Position, error)
}

// uniswapSingleTokenSource computes each position's single-token amount
// (token0 or token1, chosen by WantToken0) from its range and the
// pool's current tick/price, per spec.md 4.6 bullet 1.
type uniswapSingleTokenSource struct {
	Reader      PoolReader
	WantToken0  bool // true selects GetAmount0, false selects GetAmount1
}

func NewUniswapSingleTokenSource(reader PoolReader, wantToken0 bool) BalanceSource {
	return &uniswapSingleTokenSource{Reader: reader, WantToken0: wantToken0}
}

func (s *uniswapSingleTokenSource) Balances(ctx context.Context, pool types.Address) (map[types.Address]*big.Int, *big.Int, error) {
	state, err := s.Reader.PoolState(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	positions, err := s.Reader.Positions(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	balances := make(map[types.Address]*big.Int)
	total := big.NewInt(0)
	for _, p := range positions {
		var amount *big.Int
		if s.WantToken0 {
			amount = uniswapv3.GetAmount0(state.Tick, state.SqrtPrice, p.TickLower, p.TickUpper, p.Liquidity)
		} else {
			amount = uniswapv3.GetAmount1(state.Tick, state.SqrtPrice, p.TickLower, p.TickUpper, p.Liquidity)
		}
		if amount.Sign() <= 0 {
			continue
		}
		accrue(balances, p.Owner, amount)
		total.Add(total, amount)
	}
	return balances, total, nil
}

// uniswapFullRangeSource takes positions across the governance token's
// canonical full range [-887220, 887220] in raw liquidity units, per
// spec.md 4.6 bullet 2.
const (
	fullRangeTickLower = -887220
	fullRangeTickUpper = 887220
)

type uniswapFullRangeSource struct {
	Reader PoolReader
}

func NewUniswapFullRangeSource(reader PoolReader) BalanceSource {
	return &uniswapFullRangeSource{Reader: reader}
}

func (s *uniswapFullRangeSource) Balances(ctx context.Context, pool types.Address) (map[types.Address]*big.Int, *big.Int, error) {
	positions, err := s.Reader.Positions(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	balances := make(map[types.Address]*big.Int)
	total := big.NewInt(0)
	for _, p := range positions {
		if p.TickLower != fullRangeTickLower || p.TickUpper != fullRangeTickUpper {
			continue
		}
		if p.Liquidity == nil || p.Liquidity.Sign() <= 0 {
			continue
		}
		accrue(balances, p.Owner, p.Liquidity)
		total.Add(total, p.Liquidity)
	}
	return balances, total, nil
}

// uniswapCurrentTickSource takes positions straddling the pool's current
// tick in raw liquidity units, per spec.md 4.6 bullet 3.
type uniswapCurrentTickSource struct {
	Reader PoolReader
}

func NewUniswapCurrentTickSource(reader PoolReader) BalanceSource {
	return &uniswapCurrentTickSource{Reader: reader}
}

func (s *uniswapCurrentTickSource) Balances(ctx context.Context, pool types.Address) (map[types.Address]*big.Int, *big.Int, error) {
	state, err := s.Reader.PoolState(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	positions, err := s.Reader.Positions(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	balances := make(map[types.Address]*big.Int)
	total := big.NewInt(0)
	for _, p := range positions {
		if !(p.TickLower <= state.Tick && state.Tick < p.TickUpper) {
			continue
		}
		if p.Liquidity == nil || p.Liquidity.Sign() <= 0 {
			continue
		}
		accrue(balances, p.Owner, p.Liquidity)
		total.Add(total, p.Liquidity)
	}
	return balances, total, nil
}

// HolderSnapshot is one ERC-20 holder's balance as of its last indexed
// update, used by holderPointsSource's time-weighted points formula.
type HolderSnapshot struct {
	Account         types.Address
	Balance         *big.Int
	UpdatedAtBlock  types.BlockHeight
	PreviousPoints  *big.Int
}

// HolderReader fetches the current holder snapshot set for a distributor token.
type HolderReader interface {
	Holders(ctx context.Context, token types.Address) ([]HolderSnapshot, error)
}

// holderPointsSource computes time-weighted holder points:
// points_i = prev_points_i + balance_i * (to_block - max(updated_at_block_i, from_block)),
// with prev_points_i reset to zero when from_block > updated_at_block_i.
type holderPointsSource struct {
	Reader              HolderReader
	FromBlock, ToBlock  types.BlockHeight
}

func NewHolderPointsSource(reader HolderReader, fromBlock, toBlock types.BlockHeight) BalanceSource {
	return &holderPointsSource{Reader: reader, FromBlock: fromBlock, ToBlock: toBlock}
}

func (s *holderPointsSource) Balances(ctx context.Context, token types.Address) (map[types.Address]*big.Int, *big.Int, error) {
	holders, err := s.Reader.Holders(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	balances := make(map[types.Address]*big.Int)
	total := big.NewInt(0)
	for _, h := range holders {
		prevPoints := h.PreviousPoints
		if s.FromBlock > h.UpdatedAtBlock {
			prevPoints = big.NewInt(0)
		}
		if prevPoints == nil {
			prevPoints = big.NewInt(0)
		}

		elapsedFrom := h.UpdatedAtBlock
		if s.FromBlock > elapsedFrom {
			elapsedFrom = s.FromBlock
		}
		elapsed := int64(s.ToBlock) - int64(elapsedFrom)
		if elapsed < 0 {
			elapsed = 0
		}

		points := new(big.Int).Mul(h.Balance, big.NewInt(elapsed))
		points.Add(points, prevPoints)
		if points.Sign() <= 0 {
			continue
		}
		accrue(balances, h.Account, points)
		total.Add(total, points)
	}
	return balances, total, nil
}

func accrue(balances map[types.Address]*big.Int, account types.Address, amount *big.Int) {
	if existing, ok := balances[account]; ok {
		existing.Add(existing, amount)
	} else {
		balances[account] = new(big.Int).Set(amount)
	}
}
