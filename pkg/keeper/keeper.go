// Package keeper aggregates oracle votes and decides whether a BFT
// supermajority has been reached, grounded on
// original_source/oracle/keeper/utils.py's get_keeper_params, can_submit,
// and submit_votes.
package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/oracle-keeper/validator/pkg/contracts"
	"github.com/oracle-keeper/validator/pkg/ethereum"
	"github.com/oracle-keeper/validator/pkg/types"
)

// ContractState is the keeper's view of the Oracles contract at a given
// block, read via a single multicall batch.
type ContractState struct {
	Paused                 bool
	CurrentRewardsNonce    types.VotingNonce
	CurrentValidatorsNonce types.VotingNonce
	TotalOracles           int
}

type tupleCall struct {
	Target common.Address
	Data   []byte
}

func toTupleCalls(calls []contracts.Call) []tupleCall {
	out := make([]tupleCall, len(calls))
	for i, c := range calls {
		out[i] = tupleCall{Target: c.Target, Data: c.Data}
	}
	return out
}

// aggregate runs calls through the Multicall contract and returns each
// call's raw return data in order.
func aggregate(ctx context.Context, client *ethereum.Client, multicallAddr common.Address, calls []contracts.Call) ([][]byte, error) {
	outputs, err := client.CallContract(ctx, multicallAddr, contracts.MulticallABI, "aggregate", toTupleCalls(calls))
	if err != nil {
		return nil, fmt.Errorf("keeper: aggregate call: %w", err)
	}
	if len(outputs) != 2 {
		return nil, fmt.Errorf("keeper: aggregate returned %d outputs, want 2", len(outputs))
	}
	returnData, ok := outputs[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("keeper: aggregate returnData has unexpected type %T", outputs[1])
	}
	return returnData, nil
}

// ReadContractState batches paused/currentRewardsNonce/currentValidatorsNonce/
// getRoleMemberCount(ORACLE_ROLE) into one aggregate() call.
func ReadContractState(ctx context.Context, client *ethereum.Client, oraclesAddr, multicallAddr common.Address) (ContractState, error) {
	pack := func(method string, args ...any) contracts.Call {
		data, err := contracts.ParsedOracles.Pack(method, args...)
		if err != nil {
			panic("keeper: bad Oracles ABI pack for " + method + ": " + err.Error())
		}
		return contracts.Call{Target: oraclesAddr, Data: data}
	}

	calls := []contracts.Call{
		pack("paused"),
		pack("currentRewardsNonce"),
		pack("currentValidatorsNonce"),
		pack("getRoleMemberCount", contracts.OracleRole),
	}

	returnData, err := aggregate(ctx, client, multicallAddr, calls)
	if err != nil {
		return ContractState{}, err
	}

	paused, err := unpackOne[bool](contracts.ParsedOracles, "paused", returnData[0])
	if err != nil {
		return ContractState{}, fmt.Errorf("keeper: unpack paused: %w", err)
	}
	rewardsNonce, err := unpackOne[*big.Int](contracts.ParsedOracles, "currentRewardsNonce", returnData[1])
	if err != nil {
		return ContractState{}, fmt.Errorf("keeper: unpack rewardsNonce: %w", err)
	}
	validatorsNonce, err := unpackOne[*big.Int](contracts.ParsedOracles, "currentValidatorsNonce", returnData[2])
	if err != nil {
		return ContractState{}, fmt.Errorf("keeper: unpack validatorsNonce: %w", err)
	}
	totalOracles, err := unpackOne[*big.Int](contracts.ParsedOracles, "getRoleMemberCount", returnData[3])
	if err != nil {
		return ContractState{}, fmt.Errorf("keeper: unpack oracle count: %w", err)
	}

	return ContractState{
		Paused:                 paused,
		CurrentRewardsNonce:    types.VotingNonce(rewardsNonce.Uint64()),
		CurrentValidatorsNonce: types.VotingNonce(validatorsNonce.Uint64()),
		TotalOracles:           int(totalOracles.Int64()),
	}, nil
}

// ListOracles reads every ORACLE_ROLE member via a second multicall batch.
func ListOracles(ctx context.Context, client *ethereum.Client, oraclesAddr, multicallAddr common.Address, total int) ([]common.Address, error) {
	calls := make([]contracts.Call, total)
	for i := 0; i < total; i++ {
		data, err := contracts.ParsedOracles.Pack("getRoleMember", contracts.OracleRole, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
		calls[i] = contracts.Call{Target: oraclesAddr, Data: data}
	}

	returnData, err := aggregate(ctx, client, multicallAddr, calls)
	if err != nil {
		return nil, fmt.Errorf("keeper: list oracles: %w", err)
	}

	oracles := make([]common.Address, total)
	for i, data := range returnData {
		addr, err := unpackOne[common.Address](contracts.ParsedOracles, "getRoleMember", data)
		if err != nil {
			return nil, fmt.Errorf("keeper: unpack oracle %d: %w", i, err)
		}
		oracles[i] = addr
	}
	return oracles, nil
}

func unpackOne[T any](parsed abi.ABI, method string, data []byte) (T, error) {
	var zero T
	outs, err := parsed.Methods[method].Outputs.Unpack(data)
	if err != nil {
		return zero, err
	}
	v, ok := outs[0].(T)
	if !ok {
		return zero, fmt.Errorf("keeper: unpack %s: expected %T, got %T", method, zero, outs[0])
	}
	return v, nil
}

// FetchVotes does one HTTP GET per oracle against the public vote
// bucket, keeping only votes whose nonce matches rewardsNonce and whose
// signature recovers to the claimed oracle.
func FetchVotes(ctx context.Context, httpClient *http.Client, bucketBaseURL string, oracles []common.Address, rewardsNonce types.VotingNonce, verify func(types.DistributorVote, common.Address) bool) []types.DistributorVote {
	var votes []types.DistributorVote
	for _, oracle := range oracles {
		key := strings.ToLower(oracle.Hex()) + "/distributor-vote.json"
		url := strings.TrimRight(bucketBaseURL, "/") + "/" + key

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			continue
		}
		var vote types.DistributorVote
		decodeErr := json.NewDecoder(resp.Body).Decode(&vote)
		resp.Body.Close()
		if decodeErr != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		if vote.Nonce != rewardsNonce {
			continue
		}
		if verify != nil && !verify(vote, oracle) {
			continue
		}
		votes = append(votes, vote)
	}
	return votes
}

// FetchValidatorsVotes is FetchVotes' counterpart for the validators
// registration vote, read from validators-vote.json under each oracle's
// bucket prefix.
func FetchValidatorsVotes(ctx context.Context, httpClient *http.Client, bucketBaseURL string, oracles []common.Address, validatorsNonce types.VotingNonce, verify func(types.ValidatorsVote, common.Address) bool) []types.ValidatorsVote {
	var votes []types.ValidatorsVote
	for _, oracle := range oracles {
		key := strings.ToLower(oracle.Hex()) + "/validators-vote.json"
		url := strings.TrimRight(bucketBaseURL, "/") + "/" + key

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			continue
		}
		var vote types.ValidatorsVote
		decodeErr := json.NewDecoder(resp.Body).Decode(&vote)
		resp.Body.Close()
		if decodeErr != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		if vote.Nonce != validatorsNonce {
			continue
		}
		if verify != nil && !verify(vote, oracle) {
			continue
		}
		votes = append(votes, vote)
	}
	return votes
}

// Tally groups votes by their (merkleRoot, merkleProofs) payload identity
// and returns the modal group plus its size, matching submit_votes'
// Counter.most_common(1).
func Tally(votes []types.DistributorVote) (payload types.DistributorVote, count int) {
	type key struct{ root, proofs string }
	groups := make(map[key][]types.DistributorVote)
	for _, v := range votes {
		k := key{v.MerkleRoot, v.MerkleProofs}
		groups[k] = append(groups[k], v)
	}

	best := 0
	var bestKey key
	for k, g := range groups {
		if len(g) > best {
			best = len(g)
			bestKey = k
		}
	}
	if best == 0 {
		return types.DistributorVote{}, 0
	}
	return groups[bestKey][0], best
}

// Signatures returns the signatures of every vote matching payload's
// (merkleRoot, merkleProofs) identity, up to the number needed for
// quorum.
func Signatures(votes []types.DistributorVote, payload types.DistributorVote, total int) []string {
	var sigs []string
	for _, v := range votes {
		if v.MerkleRoot == payload.MerkleRoot && v.MerkleProofs == payload.MerkleProofs {
			sigs = append(sigs, v.Signature)
			if CanSubmit(len(sigs), total) {
				break
			}
		}
	}
	return sigs
}

// TallyValidators is Tally's counterpart for the validators registration
// vote, grouping by (validatorsRoot, validatorsIpfsHash) identity.
func TallyValidators(votes []types.ValidatorsVote) (payload types.ValidatorsVote, count int) {
	type key struct{ root, ref string }
	groups := make(map[key][]types.ValidatorsVote)
	for _, v := range votes {
		k := key{v.ValidatorsRoot, v.ValidatorsIPFSRef}
		groups[k] = append(groups[k], v)
	}

	best := 0
	var bestKey key
	for k, g := range groups {
		if len(g) > best {
			best = len(g)
			bestKey = k
		}
	}
	if best == 0 {
		return types.ValidatorsVote{}, 0
	}
	return groups[bestKey][0], best
}

// SignaturesValidators is Signatures' counterpart for the validators vote.
func SignaturesValidators(votes []types.ValidatorsVote, payload types.ValidatorsVote, total int) []string {
	var sigs []string
	for _, v := range votes {
		if v.ValidatorsRoot == payload.ValidatorsRoot && v.ValidatorsIPFSRef == payload.ValidatorsIPFSRef {
			sigs = append(sigs, v.Signature)
			if CanSubmit(len(sigs), total) {
				break
			}
		}
	}
	return sigs
}

// CanSubmit implements the BFT supermajority rule: votes*3 > total*2,
// i.e. strictly more than two-thirds.
func CanSubmit(votes, total int) bool {
	return votes*3 > total*2
}
