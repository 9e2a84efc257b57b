package votingparams

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oracle-keeper/validator/pkg/types"
)

type fakeConsensusClient struct {
	response json.RawMessage
	err      error
}

func (f fakeConsensusClient) Query(ctx context.Context, urls []string, doc string, vars map[string]any) (json.RawMessage, error) {
	return f.response, f.err
}

func TestFetchVotingParametersDecodesDistributor(t *testing.T) {
	client := fakeConsensusClient{response: json.RawMessage(`{
		"network": {"rewardsNonce": "5", "validatorsNonce": "2"},
		"merkleDistributors": [{"merkleRoot": "0xabc", "merkleProofsIpfsHash": "Qm123"}]
	}`)}

	got, err := FetchVotingParameters(context.Background(), client, nil, types.BlockHeight(100))
	if err != nil {
		t.Fatalf("FetchVotingParameters: %v", err)
	}
	if got.RewardsNonce != 5 {
		t.Errorf("RewardsNonce = %d, want 5", got.RewardsNonce)
	}
	if got.ValidatorsNonce != 2 {
		t.Errorf("ValidatorsNonce = %d, want 2", got.ValidatorsNonce)
	}
	if got.ProofsURL != "Qm123" {
		t.Errorf("ProofsURL = %q, want Qm123", got.ProofsURL)
	}
}

func TestFetchVotingParametersHandlesNoDistributorYet(t *testing.T) {
	client := fakeConsensusClient{response: json.RawMessage(`{
		"network": {"rewardsNonce": "0", "validatorsNonce": "0"},
		"merkleDistributors": []
	}`)}

	got, err := FetchVotingParameters(context.Background(), client, nil, types.BlockHeight(1))
	if err != nil {
		t.Fatalf("FetchVotingParameters: %v", err)
	}
	var zeroHash [32]byte
	if got.MerkleRoot != zeroHash {
		t.Errorf("expected zero MerkleRoot when no distributor exists, got %x", got.MerkleRoot)
	}
	if got.ProofsURL != "" {
		t.Errorf("expected empty ProofsURL, got %q", got.ProofsURL)
	}
}

func TestFetchVotingParametersPropagatesQueryError(t *testing.T) {
	client := fakeConsensusClient{err: errBoom}
	_, err := FetchVotingParameters(context.Background(), client, nil, types.BlockHeight(1))
	if err == nil {
		t.Fatal("expected an error to be propagated")
	}
}

var errBoom = queryError("boom")

type queryError string

func (e queryError) Error() string { return string(e) }
