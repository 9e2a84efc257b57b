// Package uniswapv3 ports the concentrated-liquidity fixed-point math used
// to convert a position's liquidity into token0/token1 balances. Every
// computation stays in math/big to match the arbitrary-precision integer
// arithmetic of the on-chain pool contracts; float64 would lose precision
// on amounts above 2^53 and silently corrupt reward shares.
package uniswapv3

import "math/big"

const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	q32     = new(big.Int).Lsh(big.NewInt(1), 32)
	q96     = new(big.Int).Lsh(big.NewInt(1), 96)
	maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// tickConstants are the per-bit multipliers for the sqrt(1.0001)^tick
	// ladder, indexed by bit position (bit 0 is handled separately as the
	// starting ratio).
	tickConstants = []string{
		"0xfff97272373d413259a46990580e213a",
		"0xfff2e50f5f656932ef12357cf3c7fdcc",
		"0xffe5caca7e10e4e61c3624eaa0941cd0",
		"0xffcb9843d60f6159c9db58835c926644",
		"0xff973b41fa98c081472e6896dfb254c0",
		"0xff2ea16466c96a3843ec78b326b52861",
		"0xfe5dee046a99a2a811c461f1969c3053",
		"0xfcbe86c7900a88aedcffc83b479aa3a4",
		"0xf987a7253ac413176f2b074cf7815e54",
		"0xf3392b0822b70005940c7a398e4b70f3",
		"0xe7159475a2c29b7443b29c7fa6e889d9",
		"0xd097f3bdfd2022b8845ad8f792aa5825",
		"0xa9f746462d870fdf8a65dc1f90e061e5",
		"0x70d869a156d2a1b890bb3df62baf32f7",
		"0x31be135f97d08fd981231505542fcfa6",
		"0x9aa508b5b7a84e1c677de54f3e99bc9",
		"0x5d6af8dedb81196699c329225ee604",
		"0x2216e584f5fa1ea926041bedfe98",
		"0x48a170391f7dc42444e8fa2",
	}

	tickConstantValues []*big.Int
	oddStartRatio      *big.Int
	evenStartRatio     *big.Int
)

func init() {
	for _, s := range tickConstants {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			panic("uniswapv3: bad tick constant " + s)
		}
		tickConstantValues = append(tickConstantValues, v)
	}
	oddStartRatio, _ = new(big.Int).SetString("fffcb933bd6fad37aa2d162d1a594001", 16)
	evenStartRatio, _ = new(big.Int).SetString("100000000000000000000000000000000", 16)
}

// mulShift computes (val*mulBy) >> 128.
func mulShift(val, mulBy *big.Int) *big.Int {
	product := new(big.Int).Mul(val, mulBy)
	return product.Rsh(product, 128)
}

// GetSqrtRatioAtTick returns sqrt(1.0001)^tick as a Q64.96 fixed-point
// value. Ports get_sqrt_ratio_at_tick bit for bit, including the
// MAX_UINT256/ratio flip applied for positive ticks.
func GetSqrtRatioAtTick(tick int) *big.Int {
	if tick < MinTick || tick > MaxTick {
		panic("uniswapv3: tick out of range")
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	var ratio *big.Int
	if absTick&0x1 != 0 {
		ratio = new(big.Int).Set(oddStartRatio)
	} else {
		ratio = new(big.Int).Set(evenStartRatio)
	}

	bit := 0x2
	for _, c := range tickConstantValues {
		if absTick&bit != 0 {
			ratio = mulShift(ratio, c)
		}
		bit <<= 1
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxU256, ratio)
	}

	// back to Q96
	rem := new(big.Int).Mod(ratio, q32)
	result := new(big.Int).Div(ratio, q32)
	if rem.Sign() > 0 {
		result.Add(result, big.NewInt(1))
	}
	return result
}

// GetAmount0Delta returns the amount of token0 owed between two sqrt
// prices for the given liquidity, floor-rounded (round_up=False in the
// reference implementation — the only mode this system needs).
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) *big.Int {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Cmp(b) > 0 {
		a, b = b, a
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(b, a)

	result := new(big.Int).Mul(numerator1, numerator2)
	result.Div(result, b)
	result.Div(result, a)
	return result
}

// GetAmount1Delta returns the amount of token1 owed between two sqrt
// prices for the given liquidity, floor-rounded.
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) *big.Int {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Cmp(b) > 0 {
		a, b = b, a
	}

	result := new(big.Int).Mul(liquidity, new(big.Int).Sub(b, a))
	result.Div(result, q96)
	return result
}

// GetAmount0 dispatches on the position's tick range against the pool's
// current tick to return the token0 amount owed to that position.
func GetAmount0(tickCurrent int, sqrtRatioX96 *big.Int, tickLower, tickUpper int, liquidity *big.Int) *big.Int {
	switch {
	case tickCurrent < tickLower:
		return GetAmount0Delta(GetSqrtRatioAtTick(tickLower), GetSqrtRatioAtTick(tickUpper), liquidity)
	case tickCurrent < tickUpper:
		return GetAmount0Delta(sqrtRatioX96, GetSqrtRatioAtTick(tickUpper), liquidity)
	default:
		return big.NewInt(0)
	}
}

// GetAmount1 dispatches on the position's tick range against the pool's
// current tick to return the token1 amount owed to that position.
func GetAmount1(tickCurrent int, sqrtRatioX96 *big.Int, tickLower, tickUpper int, liquidity *big.Int) *big.Int {
	switch {
	case tickCurrent < tickLower:
		return big.NewInt(0)
	case tickCurrent < tickUpper:
		return GetAmount1Delta(GetSqrtRatioAtTick(tickLower), sqrtRatioX96, liquidity)
	default:
		return GetAmount1Delta(GetSqrtRatioAtTick(tickLower), GetSqrtRatioAtTick(tickUpper), liquidity)
	}
}
