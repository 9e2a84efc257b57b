package uniswapv3

import (
	"math/big"
	"testing"
)

func TestGetSqrtRatioAtTick_Zero(t *testing.T) {
	got := GetSqrtRatioAtTick(0)
	if got.Cmp(q96) != 0 {
		t.Errorf("tick 0 should be exactly Q96, got %s want %s", got, q96)
	}
}

func TestGetSqrtRatioAtTick_PositiveGreaterThanNegative(t *testing.T) {
	pos := GetSqrtRatioAtTick(100)
	neg := GetSqrtRatioAtTick(-100)
	if pos.Cmp(neg) <= 0 {
		t.Errorf("sqrt ratio at tick 100 should exceed tick -100: got %s vs %s", pos, neg)
	}
}

func TestGetSqrtRatioAtTick_Bounds(t *testing.T) {
	// must not panic at the extremes
	_ = GetSqrtRatioAtTick(MinTick)
	_ = GetSqrtRatioAtTick(MaxTick)
}

func TestGetAmount0Delta_OrdersOperands(t *testing.T) {
	a := GetSqrtRatioAtTick(-100)
	b := GetSqrtRatioAtTick(100)
	liquidity := big.NewInt(1_000_000)

	forward := GetAmount0Delta(a, b, liquidity)
	reversed := GetAmount0Delta(b, a, liquidity)
	if forward.Cmp(reversed) != 0 {
		t.Errorf("amount0 delta should be symmetric regardless of operand order: %s vs %s", forward, reversed)
	}
}

func TestGetAmount0_OutOfRangeAboveReturnsZero(t *testing.T) {
	amt := GetAmount0(1000, GetSqrtRatioAtTick(1000), -100, 100, big.NewInt(1000))
	if amt.Sign() != 0 {
		t.Errorf("expected zero token0 for a position entirely below current tick, got %s", amt)
	}
}

func TestGetAmount1_OutOfRangeBelowReturnsZero(t *testing.T) {
	amt := GetAmount1(-1000, GetSqrtRatioAtTick(-1000), -100, 100, big.NewInt(1000))
	if amt.Sign() != 0 {
		t.Errorf("expected zero token1 for a position entirely above current tick, got %s", amt)
	}
}

func TestGetAmount0AndAmount1_InRangeBothNonzero(t *testing.T) {
	tickLower, tickUpper := -100, 100
	tickCurrent := 0
	sqrtPrice := GetSqrtRatioAtTick(tickCurrent)
	liquidity := big.NewInt(1_000_000_000)

	amt0 := GetAmount0(tickCurrent, sqrtPrice, tickLower, tickUpper, liquidity)
	amt1 := GetAmount1(tickCurrent, sqrtPrice, tickLower, tickUpper, liquidity)

	if amt0.Sign() <= 0 {
		t.Errorf("expected positive token0 amount in range, got %s", amt0)
	}
	if amt1.Sign() <= 0 {
		t.Errorf("expected positive token1 amount in range, got %s", amt1)
	}
}
