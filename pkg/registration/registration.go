// Package registration selects the next batch of validators to register
// using a weighted-rotation operator bag, grounded on spec.md 4.9.
package registration

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/oracle-keeper/validator/pkg/chainutil"
	"github.com/oracle-keeper/validator/pkg/types"
)

// Operator is one indexed node operator eligible for rotation.
type Operator struct {
	ID              string
	Address         types.Address
	DepositDataIndex int
}

// DepositDatum is a single validator deposit-data entry read from the
// indexer's deposit-data rows for an operator.
type DepositDatum struct {
	PublicKey             []byte
	WithdrawalCredentials []byte
	Signature             []byte
	DepositDataRoot       [32]byte
	Amount                *big.Int
}

// Indexer is the subset of subgraph reads the selector needs.
type Indexer interface {
	Operators(ctx context.Context) ([]Operator, error)
	LastUsedOperators(ctx context.Context) ([]string, error)
	DepositData(ctx context.Context, operatorID string) ([]DepositDatum, error)
	CanRegister(ctx context.Context, publicKey []byte) (bool, error)
}

// Weights are the weighted-rotation bag weights for the first, second,
// and all remaining operators (defaults 3, 2, 1 per spec.md 4.9).
type Weights [3]int

var DefaultWeights = Weights{3, 2, 1}

// Config bundles per-tick selection parameters.
type Config struct {
	ConfiguredBatchSize        int
	PoolBalanceWei             *big.Int
	GovernanceExchangeRateBps  int // 0 disables the governance-chain multiplier
	Weights                    Weights
}

// batchSize is min(configured_batch, pool_balance // 32 ether), with the
// governance chain applying a fixed exchange-rate multiplier to
// pool_balance before the division.
func batchSize(cfg Config) int {
	balance := cfg.PoolBalanceWei
	if cfg.GovernanceExchangeRateBps > 0 {
		balance = new(big.Int).Mul(balance, big.NewInt(int64(cfg.GovernanceExchangeRateBps)))
		balance.Div(balance, big.NewInt(10000))
	}
	maxByBalance := new(big.Int).Div(balance, chainutil.EtherToWei(32))
	if maxByBalance.Cmp(big.NewInt(int64(cfg.ConfiguredBatchSize))) < 0 {
		return int(maxByBalance.Int64())
	}
	return cfg.ConfiguredBatchSize
}

func buildBag(operators []Operator, weights Weights) []Operator {
	sorted := append([]Operator(nil), operators...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var bag []Operator
	for i, op := range sorted {
		w := weights[2]
		if i == 0 {
			w = weights[0]
		} else if i == 1 {
			w = weights[1]
		}
		for n := 0; n < w; n++ {
			bag = append(bag, op)
		}
	}
	return bag
}

// removeLastUsed drops every bag entry whose operator ID is in the tail
// of last-used operators.
func removeLastUsed(bag []Operator, lastUsed []string) []Operator {
	skip := make(map[string]bool, len(lastUsed))
	for _, id := range lastUsed {
		skip[id] = true
	}
	out := bag[:0:0]
	for _, op := range bag {
		if !skip[op.ID] {
			out = append(out, op)
		}
	}
	return out
}

// Selection is one chosen validator's registration five-tuple.
type Selection struct {
	OperatorID string
	DepositDatum
}

// SelectBatch walks the weighted-rotation order until the batch is full
// or every operator has been discarded this tick.
func SelectBatch(ctx context.Context, idx Indexer, cfg Config) ([]Selection, error) {
	operators, err := idx.Operators(ctx)
	if err != nil {
		return nil, fmt.Errorf("registration: list operators: %w", err)
	}
	lastUsed, err := idx.LastUsedOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("registration: last used operators: %w", err)
	}

	target := batchSize(cfg)
	if target <= 0 {
		return nil, nil
	}

	bag := removeLastUsed(buildBag(operators, cfg.Weights), lastUsed)
	usedThisTick := make(map[string]bool)
	discarded := make(map[string]bool)
	newTail := append([]string(nil), lastUsed...)

	var selections []Selection
	for len(selections) < target && len(discarded) < len(operators) {
		var chosen *Operator
		for i := range bag {
			if !discarded[bag[i].ID] {
				chosen = &bag[i]
				break
			}
		}
		if chosen == nil {
			break
		}

		datum, err := scanDepositData(ctx, idx, *chosen, usedThisTick)
		if err != nil || datum == nil {
			discarded[chosen.ID] = true
			continue
		}

		usedThisTick[string(datum.PublicKey)] = true
		selections = append(selections, Selection{OperatorID: chosen.ID, DepositDatum: *datum})
		newTail = append(newTail, chosen.ID)
	}

	return selections, nil
}

// scanDepositData walks an operator's deposit-data list starting from
// its indexer-recorded index until it finds a key unused this tick that
// also passes the indexer's can_register check.
func scanDepositData(ctx context.Context, idx Indexer, op Operator, usedThisTick map[string]bool) (*DepositDatum, error) {
	data, err := idx.DepositData(ctx, op.ID)
	if err != nil {
		return nil, err
	}
	for i := op.DepositDataIndex; i < len(data); i++ {
		datum := data[i]
		if usedThisTick[string(datum.PublicKey)] {
			continue
		}
		ok, err := idx.CanRegister(ctx, datum.PublicKey)
		if err != nil {
			return nil, err
		}
		if ok {
			return &datum, nil
		}
	}
	return nil, nil
}

// SuppressIfUnchanged reports whether a newly computed vote should be
// suppressed because both the deposit root and the deposit-data tuple
// match the previous tick's vote.
func SuppressIfUnchanged(currentRoot, previousRoot [32]byte, current, previous []Selection) bool {
	if currentRoot != previousRoot || len(current) != len(previous) {
		return false
	}
	for i := range current {
		if string(current[i].PublicKey) != string(previous[i].PublicKey) {
			return false
		}
	}
	return true
}
