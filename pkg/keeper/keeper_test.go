package keeper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oracle-keeper/validator/pkg/types"
)

func TestCanSubmit(t *testing.T) {
	require.True(t, CanSubmit(7, 9))  // 21 > 18
	require.False(t, CanSubmit(6, 9)) // 18 > 18 is false
	require.True(t, CanSubmit(3, 4))  // 9 > 8
	require.False(t, CanSubmit(2, 4)) // 6 > 8 is false
}

func TestTallyPicksModalPayload(t *testing.T) {
	majority := types.DistributorVote{Nonce: 1, MerkleRoot: "0xroot-a", MerkleProofs: "ipfs://a"}
	minority := types.DistributorVote{Nonce: 1, MerkleRoot: "0xroot-b", MerkleProofs: "ipfs://b"}

	votes := []types.DistributorVote{majority, majority, majority, minority}

	payload, count := Tally(votes)
	require.Equal(t, 3, count)
	require.Equal(t, majority.MerkleRoot, payload.MerkleRoot)
	require.Equal(t, majority.MerkleProofs, payload.MerkleProofs)
}

func TestTallyEmpty(t *testing.T) {
	payload, count := Tally(nil)
	require.Equal(t, 0, count)
	require.Equal(t, types.DistributorVote{}, payload)
}

func TestSignaturesStopsAtQuorum(t *testing.T) {
	payload := types.DistributorVote{MerkleRoot: "0xroot", MerkleProofs: "ipfs://x"}
	votes := []types.DistributorVote{
		{MerkleRoot: "0xroot", MerkleProofs: "ipfs://x", Signature: "0x01"},
		{MerkleRoot: "0xroot", MerkleProofs: "ipfs://x", Signature: "0x02"},
		{MerkleRoot: "0xroot", MerkleProofs: "ipfs://x", Signature: "0x03"},
		{MerkleRoot: "0xroot", MerkleProofs: "ipfs://x", Signature: "0x04"},
	}

	sigs := Signatures(votes, payload, 4) // quorum at 3 of 4
	require.Len(t, sigs, 3)
}

func TestTallyValidatorsPicksModalPayload(t *testing.T) {
	majority := types.ValidatorsVote{Nonce: 1, ValidatorsRoot: "0xroot-a", ValidatorsIPFSRef: "ipfs://a"}
	minority := types.ValidatorsVote{Nonce: 1, ValidatorsRoot: "0xroot-b", ValidatorsIPFSRef: "ipfs://b"}

	votes := []types.ValidatorsVote{majority, majority, minority}

	payload, count := TallyValidators(votes)
	require.Equal(t, 2, count)
	require.Equal(t, majority.ValidatorsRoot, payload.ValidatorsRoot)
}

func TestSignaturesValidatorsStopsAtQuorum(t *testing.T) {
	payload := types.ValidatorsVote{ValidatorsRoot: "0xroot", ValidatorsIPFSRef: "ipfs://x"}
	votes := []types.ValidatorsVote{
		{ValidatorsRoot: "0xroot", ValidatorsIPFSRef: "ipfs://x", Signature: "0x01"},
		{ValidatorsRoot: "0xroot", ValidatorsIPFSRef: "ipfs://x", Signature: "0x02"},
	}

	sigs := SignaturesValidators(votes, payload, 2)
	require.Len(t, sigs, 2)
}
