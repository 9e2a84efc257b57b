// Package types defines the data model shared across the oracle and keeper
// packages: addresses, amounts, voting nonces, and the distribution/claim
// shapes produced by the reward pipeline.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Address is an Ethereum account or contract address: an alias of
// go-ethereum's common.Address, so every package shares one type whose
// EIP-55 checksummed Hex() form is the canonical string form.
type Address = common.Address

// Amount is an arbitrary-precision integer quantity of wei (or any other
// base-unit token amount). It marshals to/from the decimal string form
// used throughout the subgraph and vote-bucket wire formats, never a JSON
// number, to avoid float64 precision loss on values above 2^53.
type Amount struct {
	*big.Int
}

// NewAmount wraps v as an Amount. A nil v is treated as zero.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{big.NewInt(0)}
	}
	return Amount{v}
}

// AmountFromString parses a base-10 decimal string into an Amount.
func AmountFromString(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: invalid amount string %q", s)
	}
	return Amount{v}, nil
}

// ZeroAmount returns a fresh zero-valued Amount.
func ZeroAmount() Amount { return Amount{big.NewInt(0)} }

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.Int.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("types: invalid amount %q", s)
	}
	a.Int = v
	return nil
}

// Add returns a new Amount holding a+b without mutating either operand.
func (a Amount) Add(b Amount) Amount {
	return Amount{new(big.Int).Add(a.orZero(), b.orZero())}
}

func (a Amount) orZero() *big.Int {
	if a.Int == nil {
		return big.NewInt(0)
	}
	return a.Int
}

// BlockHeight is an Ethereum execution-layer block number.
type BlockHeight uint64

// VotingNonce increments each time the keeper submits a new merkle root or
// validator registration batch, scoping an oracle vote to a specific round.
type VotingNonce uint64

// UnixTime is a block or checkpoint timestamp in seconds since the epoch.
type UnixTime int64

// Distribution is a concrete slice of allocation targeted at one
// contract, chopped into a fixed-width block interval: the planner's
// output before the routing engine expands it into final per-account
// balances. UniV3Token is the zero address when the contract is routed
// by liquidity share, or one of the three named tokens when routed by
// single-token balance inside a concentrated-liquidity pool.
type Distribution struct {
	Contract    Address
	FromBlock   BlockHeight
	ToBlock     BlockHeight
	RewardToken Address
	Reward      Amount
	UniV3Token  Address
}

// Rewards is the accumulated, not-yet-finalized reward ledger produced
// while the routing engine expands redirects: account -> token -> amount.
type Rewards struct {
	balances map[Address]map[Address]Amount
}

// NewRewards returns an empty reward ledger.
func NewRewards() *Rewards {
	return &Rewards{balances: make(map[Address]map[Address]Amount)}
}

// Add credits amount of token to account, accumulating with any existing
// balance for that (account, token) pair.
func (r *Rewards) Add(account, token Address, amount Amount) {
	if amount.Int == nil || amount.Sign() == 0 {
		return
	}
	perToken, ok := r.balances[account]
	if !ok {
		perToken = make(map[Address]Amount)
		r.balances[account] = perToken
	}
	perToken[token] = perToken[token].Add(amount)
}

// Merge folds other into r, summing overlapping (account, token) balances.
func (r *Rewards) Merge(other *Rewards) {
	for account, perToken := range other.balances {
		for token, amount := range perToken {
			r.Add(account, token, amount)
		}
	}
}

// TotalDistributed sums every balance across every account for the given
// token.
func (r *Rewards) TotalDistributed(token Address) Amount {
	total := ZeroAmount()
	for _, perToken := range r.balances {
		if amt, ok := perToken[token]; ok {
			total = total.Add(amt)
		}
	}
	return total
}

// Accounts returns every account with a nonzero balance, sorted ascending
// by address so downstream consumers iterate deterministically.
func (r *Rewards) Accounts() []Address {
	accounts := make([]Address, 0, len(r.balances))
	for a := range r.balances {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Hex() < accounts[j].Hex()
	})
	return accounts
}

// Balance returns the accumulated amount of token credited to account.
func (r *Rewards) Balance(account, token Address) Amount {
	perToken, ok := r.balances[account]
	if !ok {
		return ZeroAmount()
	}
	return perToken[token]
}

// ToClaims flattens the ledger into the final sorted Claim slice consumed
// by the Merkle builder, assigning each account's Index by its sorted
// position.
func (r *Rewards) ToClaims() []Claim {
	accounts := r.Accounts()
	out := make([]Claim, 0, len(accounts))
	for i, account := range accounts {
		perToken := r.balances[account]
		tokens := make([]Address, 0, len(perToken))
		for t := range perToken {
			tokens = append(tokens, t)
		}
		sort.Slice(tokens, func(i, j int) bool { return tokens[i].Hex() < tokens[j].Hex() })

		amounts := make([]*big.Int, 0, len(tokens))
		for _, t := range tokens {
			amounts = append(amounts, perToken[t].orZero())
		}
		out = append(out, Claim{Index: uint64(i), Account: account, Tokens: tokens, Amounts: amounts})
	}
	return out
}

// Claim is one leaf of the Merkle distribution tree: a recipient's
// sorted-position index plus its per-token amounts.
type Claim struct {
	Index   uint64
	Account Address
	Tokens  []Address
	Amounts []*big.Int
}

// DistributorVote is an oracle's signed opinion on the current reward
// distribution round's Merkle root, published to the public vote bucket.
type DistributorVote struct {
	Nonce        VotingNonce `json:"nonce"`
	MerkleRoot   string      `json:"merkle_root"`
	MerkleProofs string      `json:"merkle_proofs"`
	Signature    string      `json:"signature"`
}

// ValidatorsVote is an oracle's signed opinion on the next batch of
// validators to register, published alongside the distributor vote.
type ValidatorsVote struct {
	Nonce             VotingNonce `json:"nonce"`
	ValidatorsRoot    string      `json:"validators_root"`
	ValidatorsIPFSRef string      `json:"validators_ipfs_hash"`
	Signature         string      `json:"signature"`
}

// OneTimeBeneficiaries is the canonical decoded shape of a one-time
// distribution blob: account -> amount.
type OneTimeBeneficiaries map[Address]Amount

// legacyOneTimeBeneficiaries is the older per-origin nested shape recovered
// from the original implementation: account -> origin label -> amount.
type legacyOneTimeBeneficiaries map[string]map[string]string

// DecodeOneTimeBeneficiaries accepts either the current flat
// {address: amount} shape or the legacy {address: {origin: amount}} shape
// and folds both down to OneTimeBeneficiaries, summing legacy per-origin
// amounts into one total per account.
func DecodeOneTimeBeneficiaries(raw json.RawMessage) (OneTimeBeneficiaries, error) {
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err == nil {
		out := make(OneTimeBeneficiaries, len(flat))
		for addr, amtStr := range flat {
			amt, err := AmountFromString(amtStr)
			if err != nil {
				return nil, fmt.Errorf("types: decode one-time beneficiary %s: %w", addr, err)
			}
			out[common.HexToAddress(addr)] = amt
		}
		return out, nil
	}

	var legacy legacyOneTimeBeneficiaries
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("types: one-time beneficiaries blob matches neither known shape: %w", err)
	}
	out := make(OneTimeBeneficiaries, len(legacy))
	for addr, origins := range legacy {
		total := ZeroAmount()
		for _, amtStr := range origins {
			amt, err := AmountFromString(amtStr)
			if err != nil {
				return nil, fmt.Errorf("types: decode legacy beneficiary %s: %w", addr, err)
			}
			total = total.Add(amt)
		}
		out[common.HexToAddress(addr)] = total
	}
	return out, nil
}
