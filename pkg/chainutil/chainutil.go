// Package chainutil holds small Ethereum unit-conversion and encoding
// helpers shared by the oracle and keeper daemons.
package chainutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
var weiPerGwei = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)

// GweiToWei converts a gwei-denominated integer to wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), weiPerGwei)
}

// EtherToWei converts an integral ether amount to wei.
func EtherToWei(ether int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(ether), weiPerEther)
}

// SubtractPrincipal returns balance minus principalEther converted to wei,
// clamped at zero. Used to strip the 32 ETH deposit principal out of a
// validator's beacon-chain balance before crediting rewards.
func SubtractPrincipal(balanceWei *big.Int, principalEther int64) *big.Int {
	out := new(big.Int).Sub(balanceWei, EtherToWei(principalEther))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// ClampMonotonic returns current if it is >= previous, otherwise previous.
// Used so a transient indexer regression never reports rewards shrinking.
func ClampMonotonic(current, previous *big.Int) *big.Int {
	if current.Cmp(previous) < 0 {
		return new(big.Int).Set(previous)
	}
	return current
}

// SortAddresses returns addrs sorted ascending by checksummed hex string,
// the deterministic iteration order required wherever a map over addresses
// must produce reproducible output (vote payloads, merkle leaves).
func SortAddresses(addrs []common.Address) []common.Address {
	out := make([]common.Address, len(addrs))
	copy(out, addrs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Hex() > out[j].Hex(); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
