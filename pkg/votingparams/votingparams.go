// Package votingparams reads the on-chain-governed parameters that scope
// a single voting round: the active merkle distributor and the rewards
// nonce it should vote against.
package votingparams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oracle-keeper/validator/pkg/types"
)

type ConsensusClient interface {
	Query(ctx context.Context, urls []string, doc string, vars map[string]any) (json.RawMessage, error)
}

const queryVotingParameters = `
query VotingParameters($block: Int!) {
  network(id: "1", block: { number: $block }) {
    rewardsNonce
    validatorsNonce
  }
  merkleDistributors(first: 1, block: { number: $block }) {
    merkleRoot
    merkleProofsIpfsHash
  }
}
`

// Parameters is the zero-value-safe result of a voting-parameters read.
// A network with no merkle distributor yet decodes to a zero MerkleRoot
// and empty ProofsURL rather than an error.
type Parameters struct {
	RewardsNonce    types.VotingNonce
	ValidatorsNonce types.VotingNonce
	MerkleRoot      common.Hash
	ProofsURL       string
}

// FetchVotingParameters reads the parameters a vote at blockNumber must
// target.
func FetchVotingParameters(ctx context.Context, client ConsensusClient, urls []string, blockNumber types.BlockHeight) (Parameters, error) {
	data, err := client.Query(ctx, urls, queryVotingParameters, map[string]any{"block": blockNumber})
	if err != nil {
		return Parameters{}, fmt.Errorf("votingparams: query: %w", err)
	}

	var page struct {
		Network struct {
			RewardsNonce    string `json:"rewardsNonce"`
			ValidatorsNonce string `json:"validatorsNonce"`
		} `json:"network"`
		MerkleDistributors []struct {
			MerkleRoot           string `json:"merkleRoot"`
			MerkleProofsIpfsHash string `json:"merkleProofsIpfsHash"`
		} `json:"merkleDistributors"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return Parameters{}, fmt.Errorf("votingparams: decode: %w", err)
	}

	var out Parameters
	var rn, vn uint64
	fmt.Sscan(page.Network.RewardsNonce, &rn)
	fmt.Sscan(page.Network.ValidatorsNonce, &vn)
	out.RewardsNonce = types.VotingNonce(rn)
	out.ValidatorsNonce = types.VotingNonce(vn)

	if len(page.MerkleDistributors) > 0 {
		d := page.MerkleDistributors[0]
		out.MerkleRoot = common.HexToHash(d.MerkleRoot)
		out.ProofsURL = d.MerkleProofsIpfsHash
	}
	return out, nil
}
