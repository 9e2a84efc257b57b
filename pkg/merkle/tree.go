// Package merkle builds the sorted-pair Keccak256 Merkle tree used to
// commit the reward distribution plan on-chain.
//
// Construction matches the on-chain verifier: internal nodes hash the two
// child hashes in ascending byte order, and an odd node at any level is
// promoted to the next level unchanged rather than duplicated. Leaves are
// the Keccak256 hash of the ABI-encoded claim tuple
// (uint256 index, address[] tokens, address account, uint256[] amounts).
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmptyTree    = errors.New("merkle: cannot build tree from zero leaves")
	ErrLeafNotFound = errors.New("merkle: leaf not found in tree")
)

// Claim is a single recipient's entry in the distribution: the amounts owed
// per reward token. Index is the recipient's position among all claims,
// sorted by Account, and is embedded in the leaf so that on-chain inclusion
// proofs can be bound to a stable position.
type Claim struct {
	Index   uint64
	Account common.Address
	Tokens  []common.Address
	Amounts []*big.Int
}

// LeafHash computes the Keccak256 leaf hash for a claim, matching the
// on-chain MerkleDistributor's verifyProof encoding.
func LeafHash(c Claim) ([]byte, error) {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	addressArrTy, err := abi.NewType("address[]", "", nil)
	if err != nil {
		return nil, err
	}
	uint256ArrTy, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		return nil, err
	}

	args := abi.Arguments{
		{Type: uint256Ty},
		{Type: addressArrTy},
		{Type: addressTy},
		{Type: uint256ArrTy},
	}

	index := new(big.Int).SetUint64(c.Index)
	packed, err := args.Pack(index, c.Tokens, c.Account, c.Amounts)
	if err != nil {
		return nil, fmt.Errorf("encode claim leaf: %w", err)
	}

	return crypto.Keccak256(packed), nil
}

// combineHash hashes the sorted concatenation of two 32-byte node hashes,
// matching the reference combine_hash construction: sorted([a, b]) joined
// and then Keccak256'd, so proof verification doesn't need left/right
// ordering metadata.
func combineHash(a, b []byte) []byte {
	pair := [][]byte{a, b}
	sort.Slice(pair, func(i, j int) bool {
		return bytes.Compare(pair[i], pair[j]) < 0
	})
	return crypto.Keccak256(append(append([]byte{}, pair[0]...), pair[1]...))
}

// Tree is a sorted-pair Keccak256 Merkle tree built over a fixed set of
// 32-byte leaf hashes.
type Tree struct {
	layers [][][]byte // layers[0] is the leaf layer
}

// Build constructs a tree from leaf hashes. Leaves are deduplicated and
// sorted ascending before the tree is built, matching the original
// distributor's canonicalization so that the same claim set always
// produces the same root regardless of input order.
func Build(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	dedup := make(map[string][]byte, len(leaves))
	for _, l := range leaves {
		dedup[string(l)] = l
	}
	unique := make([][]byte, 0, len(dedup))
	for _, l := range dedup {
		unique = append(unique, l)
	}
	sort.Slice(unique, func(i, j int) bool {
		return bytes.Compare(unique[i], unique[j]) < 0
	})

	t := &Tree{layers: [][][]byte{unique}}
	current := unique
	for len(current) > 1 {
		next := nextLayer(current)
		t.layers = append(t.layers, next)
		current = next
	}
	return t, nil
}

// nextLayer combines adjacent pairs; an odd trailing node is promoted to
// the next layer unchanged rather than paired with itself.
func nextLayer(layer [][]byte) [][]byte {
	next := make([][]byte, 0, (len(layer)+1)/2)
	for i := 0; i < len(layer); i += 2 {
		if i+1 == len(layer) {
			next = append(next, layer[i])
			continue
		}
		next = append(next, combineHash(layer[i], layer[i+1]))
	}
	return next
}

// Root returns the tree's root hash. A single-leaf tree's root is that leaf.
func (t *Tree) Root() []byte {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling hashes needed to verify leafHash's inclusion,
// ordered from the leaf layer up to the root.
func (t *Tree) Proof(leafHash []byte) ([][]byte, error) {
	idx := -1
	for i, l := range t.layers[0] {
		if bytes.Equal(l, leafHash) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrLeafNotFound
	}

	proof := make([][]byte, 0)
	for level := 0; level < len(t.layers)-1; level++ {
		layer := t.layers[level]
		pairIdx := idx ^ 1
		if pairIdx < len(layer) {
			proof = append(proof, layer[pairIdx])
		}
		idx /= 2
	}
	return proof, nil
}

// Verify recomputes the root from leafHash and proof and compares it
// against expectedRoot. Order of proof entries does not matter since
// combineHash sorts each pair before hashing.
func Verify(leafHash []byte, proof [][]byte, expectedRoot []byte) bool {
	current := leafHash
	for _, sibling := range proof {
		current = combineHash(current, sibling)
	}
	return bytes.Equal(current, expectedRoot)
}
