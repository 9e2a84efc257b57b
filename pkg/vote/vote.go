// Package vote signs and publishes an oracle's opinion on the current
// voting round: the distributor merkle root/proofs, or the next batch of
// validators to register. Signing follows the EIP-191 personal-sign
// scheme used throughout the reference implementation's
// check_distributor_vote/validate_vote_signature pair.
package vote

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/oracle-keeper/validator/pkg/blobstore"
	"github.com/oracle-keeper/validator/pkg/types"
)

// DistributorVoteFilename and ValidatorsVoteFilename are the bucket keys
// each oracle publishes its vote under, namespaced by its own address so
// the keeper can GET <oracle>/<filename> for every known oracle.
const (
	DistributorVoteFilename = "distributor-vote.json"
	ValidatorsVoteFilename  = "validators-vote.json"
)

// uint256Type, stringType, bytes32Type are reused across Sign calls to
// avoid re-parsing abi type strings on every vote.
var (
	uint256Type, _ = abi.NewType("uint256", "", nil)
	stringType, _  = abi.NewType("string", "", nil)
	bytes32Type, _ = abi.NewType("bytes32", "", nil)
)

func personalSignDigest(data []byte) []byte {
	candidateID := crypto.Keccak256(data)
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(candidateID), candidateID)
	return crypto.Keccak256([]byte(prefixed))
}

func sign(privateKey *ecdsa.PrivateKey, encodedData []byte) (string, error) {
	digest := personalSignDigest(encodedData)
	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", fmt.Errorf("vote: sign: %w", err)
	}
	// go-ethereum's recovery id is 0/1; personal-sign wire format expects 27/28.
	sig[64] += 27
	return "0x" + common.Bytes2Hex(sig), nil
}

// SignDistributorVote ABI-encodes (nonce, merkleProofs, merkleRoot) and
// signs the resulting digest, matching check_distributor_vote's encoding
// order exactly.
func SignDistributorVote(privateKey *ecdsa.PrivateKey, nonce types.VotingNonce, merkleRoot common.Hash, merkleProofsURL string) (types.DistributorVote, error) {
	args := abi.Arguments{{Type: uint256Type}, {Type: stringType}, {Type: bytes32Type}}
	encoded, err := args.Pack(new(big.Int).SetUint64(uint64(nonce)), merkleProofsURL, merkleRoot)
	if err != nil {
		return types.DistributorVote{}, fmt.Errorf("vote: encode distributor vote: %w", err)
	}

	signature, err := sign(privateKey, encoded)
	if err != nil {
		return types.DistributorVote{}, err
	}

	return types.DistributorVote{
		Nonce:        nonce,
		MerkleRoot:   merkleRoot.Hex(),
		MerkleProofs: merkleProofsURL,
		Signature:    signature,
	}, nil
}

// SignValidatorsVote ABI-encodes (nonce, validatorsIpfsHash, validatorsRoot)
// and signs it, mirroring the distributor vote's encoding shape.
func SignValidatorsVote(privateKey *ecdsa.PrivateKey, nonce types.VotingNonce, validatorsRoot common.Hash, validatorsIPFSRef string) (types.ValidatorsVote, error) {
	args := abi.Arguments{{Type: uint256Type}, {Type: stringType}, {Type: bytes32Type}}
	encoded, err := args.Pack(new(big.Int).SetUint64(uint64(nonce)), validatorsIPFSRef, validatorsRoot)
	if err != nil {
		return types.ValidatorsVote{}, fmt.Errorf("vote: encode validators vote: %w", err)
	}

	signature, err := sign(privateKey, encoded)
	if err != nil {
		return types.ValidatorsVote{}, err
	}

	return types.ValidatorsVote{
		Nonce:             nonce,
		ValidatorsRoot:    validatorsRoot.Hex(),
		ValidatorsIPFSRef: validatorsIPFSRef,
		Signature:         signature,
	}, nil
}

// VerifyDistributorVote checks that v's signature recovers to oracle,
// mirroring check_distributor_vote/validate_vote_signature.
func VerifyDistributorVote(v types.DistributorVote, oracle common.Address) bool {
	args := abi.Arguments{{Type: uint256Type}, {Type: stringType}, {Type: bytes32Type}}
	encoded, err := args.Pack(new(big.Int).SetUint64(uint64(v.Nonce)), v.MerkleProofs, common.HexToHash(v.MerkleRoot))
	if err != nil {
		return false
	}
	return verifySignature(encoded, oracle, v.Signature)
}

// VerifyValidatorsVote is VerifyDistributorVote's counterpart for the
// validators registration vote.
func VerifyValidatorsVote(v types.ValidatorsVote, oracle common.Address) bool {
	args := abi.Arguments{{Type: uint256Type}, {Type: stringType}, {Type: bytes32Type}}
	encoded, err := args.Pack(new(big.Int).SetUint64(uint64(v.Nonce)), v.ValidatorsIPFSRef, common.HexToHash(v.ValidatorsRoot))
	if err != nil {
		return false
	}
	return verifySignature(encoded, oracle, v.Signature)
}

func verifySignature(encodedData []byte, oracle common.Address, signature string) bool {
	sig := common.FromHex(signature)
	if len(sig) != 65 {
		return false
	}
	sig = append([]byte{}, sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := personalSignDigest(encodedData)
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubkey) == oracle
}

// PublishDistributorVote publishes vote under <oracleAddress>/distributor-vote.json.
func PublishDistributorVote(ctx context.Context, store *blobstore.Store, oracleAddress common.Address, vote types.DistributorVote) error {
	return publishVote(ctx, store, oracleAddress, DistributorVoteFilename, vote)
}

// PublishValidatorsVote publishes vote under <oracleAddress>/validators-vote.json.
func PublishValidatorsVote(ctx context.Context, store *blobstore.Store, oracleAddress common.Address, vote types.ValidatorsVote) error {
	return publishVote(ctx, store, oracleAddress, ValidatorsVoteFilename, vote)
}

func publishVote(ctx context.Context, store *blobstore.Store, oracleAddress common.Address, filename string, vote any) error {
	body, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("vote: marshal: %w", err)
	}
	key := strings.ToLower(oracleAddress.Hex()) + "/" + filename
	return store.Put(ctx, key, body, "application/json")
}
