package chainutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGweiToWei(t *testing.T) {
	got := GweiToWei(5)
	want := big.NewInt(5000000000)
	if got.Cmp(want) != 0 {
		t.Errorf("GweiToWei(5) = %s, want %s", got, want)
	}
}

func TestSubtractPrincipalClampsAtZero(t *testing.T) {
	balance := EtherToWei(10)
	got := SubtractPrincipal(balance, 32)
	if got.Sign() != 0 {
		t.Errorf("SubtractPrincipal below principal = %s, want 0", got)
	}
}

func TestSubtractPrincipal(t *testing.T) {
	balance := EtherToWei(40)
	got := SubtractPrincipal(balance, 32)
	want := EtherToWei(8)
	if got.Cmp(want) != 0 {
		t.Errorf("SubtractPrincipal(40, 32) = %s, want %s", got, want)
	}
}

func TestClampMonotonic(t *testing.T) {
	previous := big.NewInt(100)
	if got := ClampMonotonic(big.NewInt(50), previous); got.Cmp(previous) != 0 {
		t.Errorf("ClampMonotonic should hold at previous when current regresses, got %s", got)
	}
	if got := ClampMonotonic(big.NewInt(150), previous); got.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("ClampMonotonic should advance when current is higher, got %s", got)
	}
}

func TestSortAddresses(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")
	c := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	sorted := SortAddresses([]common.Address{c, a, b})
	if sorted[0] != a || sorted[1] != b || sorted[2] != c {
		t.Errorf("SortAddresses did not produce ascending hex order: %v", sorted)
	}
}
