package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPackAggregate(t *testing.T) {
	calls := []Call{
		{Target: common.HexToAddress("0x01"), Data: []byte{0xaa, 0xbb}},
		{Target: common.HexToAddress("0x02"), Data: []byte{0xcc}},
	}

	packed, err := PackAggregate(calls)
	if err != nil {
		t.Fatalf("PackAggregate: %v", err)
	}
	if len(packed) < 4 {
		t.Errorf("expected packed calldata to carry at least a 4-byte selector, got %d bytes", len(packed))
	}
}

func TestUnpackAggregate(t *testing.T) {
	blockNumber, returnData, err := UnpackAggregate(packSyntheticReturn(t, big.NewInt(42), [][]byte{{0x01}, {0x02}}))
	if err != nil {
		t.Fatalf("UnpackAggregate: %v", err)
	}
	if blockNumber.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("blockNumber = %s, want 42", blockNumber)
	}
	if len(returnData) != 2 {
		t.Fatalf("expected 2 return values, got %d", len(returnData))
	}
}

// packSyntheticReturn builds the ABI-encoded (uint256, bytes[]) tuple
// aggregate() returns, so UnpackAggregate can be exercised without a live
// contract call.
func packSyntheticReturn(t *testing.T, blockNumber *big.Int, returnData [][]byte) []byte {
	t.Helper()
	encoded, err := ParsedMulticall.Methods["aggregate"].Outputs.Pack(blockNumber, returnData)
	if err != nil {
		t.Fatalf("pack synthetic aggregate return: %v", err)
	}
	return encoded
}

func TestParsedOraclesPackSubmitRewards(t *testing.T) {
	sigs := [][]byte{{0x01, 0x02}, {0x03, 0x04}}
	data, err := ParsedOracles.Pack("submitRewards", common.HexToHash("0xabc"), "ipfs://proofs", sigs)
	if err != nil {
		t.Fatalf("pack submitRewards: %v", err)
	}
	if len(data) < 4 {
		t.Errorf("expected packed calldata with a method selector, got %d bytes", len(data))
	}
}

func TestOracleRoleIsDeterministic(t *testing.T) {
	if OracleRole == (common.Hash{}) {
		t.Error("OracleRole must not be the zero hash")
	}
	if OracleRole == DefaultAdminRole {
		t.Error("OracleRole must differ from DefaultAdminRole")
	}
}
