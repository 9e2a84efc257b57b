package registration

import (
	"context"
	"math/big"
	"testing"

	"github.com/oracle-keeper/validator/pkg/chainutil"
)

type fakeIndexer struct {
	operators  []Operator
	lastUsed   []string
	deposits   map[string][]DepositDatum
	registered map[string]bool // publicKey (string) -> already registered
}

func (f *fakeIndexer) Operators(ctx context.Context) ([]Operator, error) {
	return f.operators, nil
}

func (f *fakeIndexer) LastUsedOperators(ctx context.Context) ([]string, error) {
	return f.lastUsed, nil
}

func (f *fakeIndexer) DepositData(ctx context.Context, operatorID string) ([]DepositDatum, error) {
	return f.deposits[operatorID], nil
}

func (f *fakeIndexer) CanRegister(ctx context.Context, publicKey []byte) (bool, error) {
	return !f.registered[string(publicKey)], nil
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{
		operators: []Operator{
			{ID: "op-1", DepositDataIndex: 0},
			{ID: "op-2", DepositDataIndex: 0},
			{ID: "op-3", DepositDataIndex: 0},
		},
		deposits: map[string][]DepositDatum{
			"op-1": {{PublicKey: []byte("op1-key-0")}, {PublicKey: []byte("op1-key-1")}},
			"op-2": {{PublicKey: []byte("op2-key-0")}},
			"op-3": {{PublicKey: []byte("op3-key-0")}},
		},
		registered: map[string]bool{},
	}
}

func TestSelectBatchHonorsWeightedBag(t *testing.T) {
	idx := newFakeIndexer()
	cfg := Config{
		ConfiguredBatchSize: 3,
		PoolBalanceWei:      chainutil.EtherToWei(96),
		Weights:             DefaultWeights,
	}

	selections, err := SelectBatch(context.Background(), idx, cfg)
	if err != nil {
		t.Fatalf("SelectBatch: %v", err)
	}
	if len(selections) != 3 {
		t.Fatalf("expected 3 selections, got %d", len(selections))
	}
	// op-1 sorts first and carries the heaviest weight, so it must win the
	// first pick of the rotation.
	if selections[0].OperatorID != "op-1" {
		t.Errorf("expected op-1 to be selected first, got %s", selections[0].OperatorID)
	}
}

func TestSelectBatchCapsAtPoolBalance(t *testing.T) {
	idx := newFakeIndexer()
	cfg := Config{
		ConfiguredBatchSize: 10,
		PoolBalanceWei:      chainutil.EtherToWei(32), // only enough for one validator
		Weights:             DefaultWeights,
	}

	selections, err := SelectBatch(context.Background(), idx, cfg)
	if err != nil {
		t.Fatalf("SelectBatch: %v", err)
	}
	if len(selections) != 1 {
		t.Fatalf("expected batch capped to 1, got %d", len(selections))
	}
}

func TestSelectBatchSkipsLastUsedOperators(t *testing.T) {
	idx := newFakeIndexer()
	idx.lastUsed = []string{"op-1"}
	cfg := Config{
		ConfiguredBatchSize: 1,
		PoolBalanceWei:      chainutil.EtherToWei(32),
		Weights:             DefaultWeights,
	}

	selections, err := SelectBatch(context.Background(), idx, cfg)
	if err != nil {
		t.Fatalf("SelectBatch: %v", err)
	}
	if len(selections) != 1 || selections[0].OperatorID == "op-1" {
		t.Errorf("expected op-1 to be excluded from rotation this tick, got %+v", selections)
	}
}

func TestSelectBatchZeroPoolBalance(t *testing.T) {
	idx := newFakeIndexer()
	cfg := Config{
		ConfiguredBatchSize: 5,
		PoolBalanceWei:      big.NewInt(0),
		Weights:             DefaultWeights,
	}

	selections, err := SelectBatch(context.Background(), idx, cfg)
	if err != nil {
		t.Fatalf("SelectBatch: %v", err)
	}
	if len(selections) != 0 {
		t.Errorf("expected no selections with zero pool balance, got %d", len(selections))
	}
}

func TestSuppressIfUnchanged(t *testing.T) {
	root := [32]byte{1, 2, 3}
	sel := []Selection{{OperatorID: "op-1", DepositDatum: DepositDatum{PublicKey: []byte("key")}}}

	if !SuppressIfUnchanged(root, root, sel, sel) {
		t.Error("expected identical root and selections to suppress")
	}
	var otherRoot [32]byte
	if SuppressIfUnchanged(root, otherRoot, sel, sel) {
		t.Error("expected differing root to not suppress")
	}
	if SuppressIfUnchanged(root, root, sel, nil) {
		t.Error("expected differing selection count to not suppress")
	}
}
