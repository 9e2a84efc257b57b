package vote

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/oracle-keeper/validator/pkg/types"
)

func TestSignAndVerifyDistributorVote(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	oracle := crypto.PubkeyToAddress(privateKey.PublicKey)

	root := common.HexToHash("0xdeadbeef")
	signed, err := SignDistributorVote(privateKey, 7, root, "ipfs://proofs")
	if err != nil {
		t.Fatalf("SignDistributorVote: %v", err)
	}

	if !VerifyDistributorVote(signed, oracle) {
		t.Error("expected signature to verify against signing oracle")
	}

	otherKey, _ := crypto.GenerateKey()
	impostor := crypto.PubkeyToAddress(otherKey.PublicKey)
	if VerifyDistributorVote(signed, impostor) {
		t.Error("expected signature to not verify against a different address")
	}

	tampered := signed
	tampered.MerkleRoot = common.HexToHash("0xfeedface").Hex()
	if VerifyDistributorVote(tampered, oracle) {
		t.Error("expected verification to fail once the payload is tampered with")
	}
}

func TestSignAndVerifyValidatorsVote(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	oracle := crypto.PubkeyToAddress(privateKey.PublicKey)

	root := common.HexToHash("0xcafebabe")
	signed, err := SignValidatorsVote(privateKey, 3, root, "ipfs://selections")
	if err != nil {
		t.Fatalf("SignValidatorsVote: %v", err)
	}

	if !VerifyValidatorsVote(signed, oracle) {
		t.Error("expected signature to verify against signing oracle")
	}
}

func TestVerifyDistributorVoteRejectsMalformedSignature(t *testing.T) {
	v := types.DistributorVote{Nonce: 1, MerkleRoot: common.HexToHash("0x01").Hex(), MerkleProofs: "ipfs://x", Signature: "0xnot-a-signature"}
	if VerifyDistributorVote(v, common.HexToAddress("0x01")) {
		t.Error("expected malformed signature to fail verification")
	}
}
