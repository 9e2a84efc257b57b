package routing

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oracle-keeper/validator/pkg/types"
)

type fakeBalanceSource struct {
	balances    map[types.Address]*big.Int
	totalSupply *big.Int
}

func (f fakeBalanceSource) Balances(ctx context.Context, contract types.Address) (map[types.Address]*big.Int, *big.Int, error) {
	return f.balances, f.totalSupply, nil
}

func rewardsTotal(t *testing.T, r *types.Rewards, token types.Address) *big.Int {
	t.Helper()
	total := big.NewInt(0)
	for _, account := range r.Accounts() {
		total.Add(total, r.Balance(account, token).Int)
	}
	return total
}

func TestGetRewardsCreditsNonRoutableContractToFallback(t *testing.T) {
	fallback := common.HexToAddress("0xFA11")
	token := common.HexToAddress("0x01")
	contract := common.HexToAddress("0xC0")

	e := &Engine{RewardToken: token, FallbackAddress: fallback}
	got, err := e.GetRewards(context.Background(), contract, big.NewInt(100))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if got.Balance(fallback, token).Int.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected the full reward credited to fallback, got %s", got.Balance(fallback, token).Int)
	}
}

func TestGetRewardsFollowsRedirect(t *testing.T) {
	token := common.HexToAddress("0x01")
	contract := common.HexToAddress("0xC0")
	redirectTarget := common.HexToAddress("0xD0")
	holder := common.HexToAddress("0xAA")

	e := &Engine{
		RewardToken:     token,
		FallbackAddress: common.HexToAddress("0xFA11"),
		Redirects:       map[types.Address]types.Address{contract: redirectTarget},
		Routable:        map[types.Address]bool{redirectTarget: true},
		Sources: map[types.Address]BalanceSource{
			redirectTarget: fakeBalanceSource{
				balances:    map[types.Address]*big.Int{holder: big.NewInt(1)},
				totalSupply: big.NewInt(1),
			},
		},
	}
	got, err := e.GetRewards(context.Background(), contract, big.NewInt(50))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if got.Balance(holder, token).Int.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected reward routed through the redirect target to its holder, got %s", got.Balance(holder, token).Int)
	}
}

func TestGetRewardsExpandsRoutablePoolProportionally(t *testing.T) {
	token := common.HexToAddress("0x01")
	fallback := common.HexToAddress("0xFA11")
	pool := common.HexToAddress("0xC0")
	holderA := common.HexToAddress("0xAA")
	holderB := common.HexToAddress("0xBB")

	e := &Engine{
		RewardToken:     token,
		FallbackAddress: fallback,
		Routable:        map[types.Address]bool{pool: true},
		Sources: map[types.Address]BalanceSource{
			pool: fakeBalanceSource{
				balances:    map[types.Address]*big.Int{holderA: big.NewInt(1), holderB: big.NewInt(3)},
				totalSupply: big.NewInt(4),
			},
		},
	}

	got, err := e.GetRewards(context.Background(), pool, big.NewInt(100))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if got.Balance(holderA, token).Int.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("holderA share = %s, want 25", got.Balance(holderA, token).Int)
	}
	if got.Balance(holderB, token).Int.Cmp(big.NewInt(75)) != 0 {
		t.Errorf("holderB share = %s, want 75 (last account absorbs remainder)", got.Balance(holderB, token).Int)
	}
	if total := rewardsTotal(t, got, token); total.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total distributed = %s, want 100", total)
	}
}

func TestGetRewardsZeroTotalSupplyFallsBack(t *testing.T) {
	token := common.HexToAddress("0x01")
	fallback := common.HexToAddress("0xFA11")
	pool := common.HexToAddress("0xC0")

	e := &Engine{
		RewardToken:     token,
		FallbackAddress: fallback,
		Routable:        map[types.Address]bool{pool: true},
		Sources: map[types.Address]BalanceSource{
			pool: fakeBalanceSource{balances: nil, totalSupply: big.NewInt(0)},
		},
	}

	got, err := e.GetRewards(context.Background(), pool, big.NewInt(42))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if got.Balance(fallback, token).Int.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("expected fallback to absorb the reward when total supply is zero, got %s", got.Balance(fallback, token).Int)
	}
}

func TestGetRewardsSelfReferentialHolderFallsBack(t *testing.T) {
	token := common.HexToAddress("0x01")
	fallback := common.HexToAddress("0xFA11")
	pool := common.HexToAddress("0xC0")

	e := &Engine{
		RewardToken:     token,
		FallbackAddress: fallback,
		Routable:        map[types.Address]bool{pool: true},
		Sources: map[types.Address]BalanceSource{
			pool: fakeBalanceSource{
				balances:    map[types.Address]*big.Int{pool: big.NewInt(1)},
				totalSupply: big.NewInt(1),
			},
		},
	}

	got, err := e.GetRewards(context.Background(), pool, big.NewInt(10))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if got.Balance(fallback, token).Int.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("expected self-referential holding to route to fallback, got %s", got.Balance(fallback, token).Int)
	}
}

func TestGetRewardsZeroOrNegativeRewardIsNoop(t *testing.T) {
	e := &Engine{}
	got, err := e.GetRewards(context.Background(), common.HexToAddress("0xC0"), big.NewInt(0))
	if err != nil {
		t.Fatalf("GetRewards: %v", err)
	}
	if len(got.Accounts()) != 0 {
		t.Errorf("expected no accounts credited for a zero reward, got %v", got.Accounts())
	}
}
