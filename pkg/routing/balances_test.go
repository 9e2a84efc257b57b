package routing

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oracle-keeper/validator/pkg/types"
)

type fakePoolReader struct {
	state     PoolState
	positions []Position
}

func (f fakePoolReader) PoolState(ctx context.Context, pool types.Address) (PoolState, error) {
	return f.state, nil
}

func (f fakePoolReader) Positions(ctx context.Context, pool types.Address) ([]Position, error) {
	return f.positions, nil
}

func TestHolderPointsSourceWeightsByElapsedBlocks(t *testing.T) {
	account := common.HexToAddress("0xAA")
	reader := fakeHolderReader{holders: []HolderSnapshot{
		{Account: account, Balance: big.NewInt(10), UpdatedAtBlock: 100, PreviousPoints: big.NewInt(5)},
	}}
	src := NewHolderPointsSource(reader, 50, 200)

	balances, total, err := src.Balances(context.Background(), common.HexToAddress("0xTOKEN"))
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	// elapsed = 200 - max(100, 50) = 100; points = 10*100 + 5 = 1005
	want := big.NewInt(1005)
	if balances[account].Cmp(want) != 0 {
		t.Errorf("points = %s, want %s", balances[account], want)
	}
	if total.Cmp(want) != 0 {
		t.Errorf("total = %s, want %s", total, want)
	}
}

func TestHolderPointsSourceResetsStalePreviousPoints(t *testing.T) {
	account := common.HexToAddress("0xAA")
	reader := fakeHolderReader{holders: []HolderSnapshot{
		{Account: account, Balance: big.NewInt(2), UpdatedAtBlock: 10, PreviousPoints: big.NewInt(999)},
	}}
	// FromBlock (500) > UpdatedAtBlock (10) so PreviousPoints resets to 0
	src := NewHolderPointsSource(reader, 500, 600)

	balances, _, err := src.Balances(context.Background(), common.HexToAddress("0xTOKEN"))
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2), big.NewInt(100)) // elapsed = 600-500 = 100
	if balances[account].Cmp(want) != 0 {
		t.Errorf("points = %s, want %s (previous points should have reset)", balances[account], want)
	}
}

func TestUniswapFullRangeSourceFiltersNonFullRangePositions(t *testing.T) {
	inRange := common.HexToAddress("0xAA")
	outOfRange := common.HexToAddress("0xBB")
	reader := fakePoolReader{positions: []Position{
		{Owner: inRange, TickLower: fullRangeTickLower, TickUpper: fullRangeTickUpper, Liquidity: big.NewInt(100)},
		{Owner: outOfRange, TickLower: -1000, TickUpper: 1000, Liquidity: big.NewInt(50)},
	}}
	src := NewUniswapFullRangeSource(reader)

	balances, total, err := src.Balances(context.Background(), common.HexToAddress("0xPOOL"))
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if _, ok := balances[outOfRange]; ok {
		t.Error("expected the non-full-range position to be excluded")
	}
	if balances[inRange].Cmp(big.NewInt(100)) != 0 {
		t.Errorf("full-range liquidity = %s, want 100", balances[inRange])
	}
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total = %s, want 100", total)
	}
}

func TestUniswapCurrentTickSourceFiltersNonStraddlingPositions(t *testing.T) {
	straddling := common.HexToAddress("0xAA")
	notStraddling := common.HexToAddress("0xBB")
	reader := fakePoolReader{
		state: PoolState{Tick: 50},
		positions: []Position{
			{Owner: straddling, TickLower: 0, TickUpper: 100, Liquidity: big.NewInt(7)},
			{Owner: notStraddling, TickLower: 200, TickUpper: 300, Liquidity: big.NewInt(3)},
		},
	}
	src := NewUniswapCurrentTickSource(reader)

	balances, total, err := src.Balances(context.Background(), common.HexToAddress("0xPOOL"))
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if _, ok := balances[notStraddling]; ok {
		t.Error("expected the non-straddling position to be excluded")
	}
	if balances[straddling].Cmp(big.NewInt(7)) != 0 {
		t.Errorf("straddling liquidity = %s, want 7", balances[straddling])
	}
	if total.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("total = %s, want 7", total)
	}
}

type fakeHolderReader struct {
	holders []HolderSnapshot
}

func (f fakeHolderReader) Holders(ctx context.Context, token types.Address) ([]HolderSnapshot, error) {
	return f.holders, nil
}
