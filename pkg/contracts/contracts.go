// Package contracts holds the ABI fragments and typed pack/unpack helpers
// for the on-chain contracts the keeper reads from and submits to: the
// Oracles voting contract and the Multicall aggregator.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OraclesABI covers the subset of the Oracles contract surface the keeper
// touches: pause state, voting nonces, role membership, and the two vote
// submission entrypoints.
const OraclesABI = `[
  {"name":"paused","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
  {"name":"currentRewardsNonce","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"name":"currentValidatorsNonce","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"name":"getRoleMemberCount","type":"function","stateMutability":"view","inputs":[{"type":"bytes32","name":"role"}],"outputs":[{"type":"uint256"}]},
  {"name":"getRoleMember","type":"function","stateMutability":"view","inputs":[{"type":"bytes32","name":"role"},{"type":"uint256","name":"index"}],"outputs":[{"type":"address"}]},
  {"name":"submitRewards","type":"function","stateMutability":"nonpayable","inputs":[
    {"type":"bytes32","name":"merkleRoot"},
    {"type":"string","name":"merkleProofs"},
    {"type":"bytes[]","name":"signatures"}
  ],"outputs":[]},
  {"name":"submitValidators","type":"function","stateMutability":"nonpayable","inputs":[
    {"type":"bytes32","name":"validatorsRoot"},
    {"type":"string","name":"validatorsIpfsHash"},
    {"type":"bytes[]","name":"signatures"}
  ],"outputs":[]}
]`

// MulticallABI is the standard aggregate() batch-call contract.
const MulticallABI = `[
  {"name":"aggregate","type":"function","stateMutability":"nonpayable","inputs":[
    {"type":"tuple[]","name":"calls","components":[
      {"type":"address","name":"target"},
      {"type":"bytes","name":"callData"}
    ]}
  ],"outputs":[
    {"type":"uint256","name":"blockNumber"},
    {"type":"bytes[]","name":"returnData"}
  ]}
]`

// Call is one leg of a multicall aggregate() batch.
type Call struct {
	Target common.Address
	Data   []byte
}

// ParsedOracles and ParsedMulticall are the abi.ABI values used to
// pack/unpack calls; built once at package init since the ABI
// JSON above is a compile-time constant.
var (
	ParsedOracles   abi.ABI
	ParsedMulticall abi.ABI
)

func init() {
	var err error
	ParsedOracles, err = abi.JSON(strings.NewReader(OraclesABI))
	if err != nil {
		panic("contracts: bad Oracles ABI: " + err.Error())
	}
	ParsedMulticall, err = abi.JSON(strings.NewReader(MulticallABI))
	if err != nil {
		panic("contracts: bad Multicall ABI: " + err.Error())
	}
}

// OracleRole and DefaultAdminRole are the OpenZeppelin AccessControl role
// identifiers the keeper reads oracle membership under.
var (
	OracleRole       = crypto.Keccak256Hash([]byte("ORACLE_ROLE"))
	DefaultAdminRole = common.Hash{} // OpenZeppelin's DEFAULT_ADMIN_ROLE is the zero hash
)

// PackAggregate builds the calldata for a Multicall aggregate() call.
func PackAggregate(calls []Call) ([]byte, error) {
	type tupleCall struct {
		Target common.Address
		Data   []byte
	}
	packed := make([]tupleCall, len(calls))
	for i, c := range calls {
		packed[i] = tupleCall{Target: c.Target, Data: c.Data}
	}
	return ParsedMulticall.Pack("aggregate", packed)
}

// UnpackAggregate decodes an aggregate() return value into the per-call
// return data slices, in the same order the calls were submitted.
func UnpackAggregate(data []byte) (*big.Int, [][]byte, error) {
	outputs, err := ParsedMulticall.Unpack("aggregate", data)
	if err != nil {
		return nil, nil, fmt.Errorf("contracts: unpack aggregate: %w", err)
	}
	if len(outputs) != 2 {
		return nil, nil, fmt.Errorf("contracts: aggregate returned %d outputs, want 2", len(outputs))
	}
	blockNumber, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("contracts: aggregate blockNumber has unexpected type %T", outputs[0])
	}
	returnData, ok := outputs[1].([][]byte)
	if !ok {
		return nil, nil, fmt.Errorf("contracts: aggregate returnData has unexpected type %T", outputs[1])
	}
	return blockNumber, returnData, nil
}
