// Command keeper aggregates the votes oracles publish to the public vote
// bucket, checks whether a BFT supermajority agrees on a single payload,
// and submits that payload on-chain once quorum holds.
package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oracle-keeper/validator/pkg/config"
	"github.com/oracle-keeper/validator/pkg/contracts"
	"github.com/oracle-keeper/validator/pkg/ethereum"
	"github.com/oracle-keeper/validator/pkg/healthz"
	"github.com/oracle-keeper/validator/pkg/keeper"
	"github.com/oracle-keeper/validator/pkg/ticker"
	"github.com/oracle-keeper/validator/pkg/txsubmit"
	"github.com/oracle-keeper/validator/pkg/vote"
)

func main() {
	var configCheck = flag.Bool("config-check", false, "load and validate configuration, then exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("starting keeper daemon")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if err := cfg.ValidateKeeper(); err != nil {
		log.Fatalf("%v", err)
	}
	if *configCheck {
		log.Println("configuration OK")
		return
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OraclePrivateKey, "0x"))
	if err != nil {
		log.Fatalf("parse keeper private key: %v", err)
	}
	keeperAddress := crypto.PubkeyToAddress(privateKey.PublicKey)
	log.Printf("keeper address: %s", keeperAddress.Hex())

	ethClient, err := ethereum.NewClient(cfg.EthereumURL, cfg.EthChainID)
	if err != nil {
		log.Fatalf("connect ethereum: %v", err)
	}

	status := healthz.New("keeper")
	reg := prometheus.NewRegistry()
	metrics := healthz.NewMetrics(reg, "keeper")

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		log.Printf("health/metrics listening on %s", cfg.HealthAddr)
		if err := healthz.Serve(cfg.HealthAddr, status, reg); err != nil {
			log.Printf("health server stopped: %v", err)
		}
	}()

	k := &keeperTick{
		cfg:           cfg,
		eth:           ethClient,
		http:          &http.Client{Timeout: 15 * time.Second},
		privateKey:    privateKey,
		keeperAddress: keeperAddress,
		oraclesAddr:   common.HexToAddress(cfg.OraclesContractAddress),
		multicallAddr: common.HexToAddress(cfg.MulticallContractAddress),
		bucketBaseURL: voteBucketBaseURL(cfg),
		status:        status,
		metrics:       metrics,
	}

	loop := ticker.New(cfg.ProcessInterval, k.run, log.New(log.Writer(), "[keeper] ", log.LstdFlags))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go loop.Run(ctx)

	<-quit
	log.Println("shutting down keeper daemon")
	loop.Stop()
	cancel()
}

// voteBucketBaseURL builds the public HTTPS base the keeper reads oracle
// votes from: a configured S3-compatible endpoint override, or the
// standard AWS virtual-hosted-style bucket URL.
func voteBucketBaseURL(cfg *config.Config) string {
	if cfg.VoteBucketURL != "" {
		return strings.TrimRight(cfg.VoteBucketURL, "/") + "/" + cfg.VoteBucketName
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.VoteBucketName, cfg.VoteBucketRegion)
}

// keeperTick carries everything one tick needs to read contract state,
// tally oracle votes, and submit the winning payload on chain.
type keeperTick struct {
	cfg           *config.Config
	eth           *ethereum.Client
	http          *http.Client
	privateKey    *ecdsa.PrivateKey
	keeperAddress common.Address
	oraclesAddr   common.Address
	multicallAddr common.Address
	bucketBaseURL string

	status  *healthz.Status
	metrics *healthz.Metrics
}

func (k *keeperTick) run(ctx context.Context) error {
	correlationID := uuid.NewString()
	log.Printf("tick %s starting", correlationID)
	k.metrics.TicksRun.Inc()

	state, err := keeper.ReadContractState(ctx, k.eth, k.oraclesAddr, k.multicallAddr)
	if err != nil {
		k.status.SetEthereum("disconnected")
		k.metrics.TicksFailed.Inc()
		return fmt.Errorf("keeper tick %s: read contract state: %w", correlationID, err)
	}
	k.status.SetEthereum("connected")

	if state.Paused {
		log.Printf("tick %s: oracles contract paused, skipping", correlationID)
		return nil
	}

	oracles, err := keeper.ListOracles(ctx, k.eth, k.oraclesAddr, k.multicallAddr, state.TotalOracles)
	if err != nil {
		k.metrics.TicksFailed.Inc()
		return fmt.Errorf("keeper tick %s: list oracles: %w", correlationID, err)
	}

	if err := k.submitRewards(ctx, oracles, state); err != nil {
		k.metrics.TicksFailed.Inc()
		log.Printf("tick %s: submit rewards: %v", correlationID, err)
	}
	if err := k.submitValidators(ctx, oracles, state); err != nil {
		k.metrics.TicksFailed.Inc()
		log.Printf("tick %s: submit validators: %v", correlationID, err)
	}

	log.Printf("tick %s complete: %d oracles known", correlationID, len(oracles))
	return nil
}

func (k *keeperTick) submitRewards(ctx context.Context, oracles []common.Address, state keeper.ContractState) error {
	votes := keeper.FetchVotes(ctx, k.http, k.bucketBaseURL, oracles, state.CurrentRewardsNonce, vote.VerifyDistributorVote)
	payload, count := keeper.Tally(votes)
	if count == 0 || !keeper.CanSubmit(count, len(oracles)) {
		return nil
	}
	k.metrics.QuorumReached.Inc()

	sigs := keeper.Signatures(votes, payload, len(oracles))
	packedSigs := make([][]byte, len(sigs))
	for i, s := range sigs {
		packedSigs[i] = common.FromHex(s)
	}

	data, err := contracts.ParsedOracles.Pack("submitRewards", common.HexToHash(payload.MerkleRoot), payload.MerkleProofs, packedSigs)
	if err != nil {
		return fmt.Errorf("pack submitRewards: %w", err)
	}

	receipt, err := txsubmit.Submit(ctx, k.eth, k.privateKey, k.oraclesAddr, data, k.txConfig())
	if err != nil {
		return fmt.Errorf("submit rewards: %w", err)
	}
	k.metrics.TxSubmitted.Inc()
	log.Printf("submitted rewards update: nonce=%d root=%s tx=%s", state.CurrentRewardsNonce, payload.MerkleRoot, receipt.TxHash.Hex())
	return nil
}

func (k *keeperTick) submitValidators(ctx context.Context, oracles []common.Address, state keeper.ContractState) error {
	votes := keeper.FetchValidatorsVotes(ctx, k.http, k.bucketBaseURL, oracles, state.CurrentValidatorsNonce, vote.VerifyValidatorsVote)
	payload, count := keeper.TallyValidators(votes)
	if count == 0 || !keeper.CanSubmit(count, len(oracles)) {
		return nil
	}
	k.metrics.QuorumReached.Inc()

	sigs := keeper.SignaturesValidators(votes, payload, len(oracles))
	packedSigs := make([][]byte, len(sigs))
	for i, s := range sigs {
		packedSigs[i] = common.FromHex(s)
	}

	data, err := contracts.ParsedOracles.Pack("submitValidators", common.HexToHash(payload.ValidatorsRoot), payload.ValidatorsIPFSRef, packedSigs)
	if err != nil {
		return fmt.Errorf("pack submitValidators: %w", err)
	}

	receipt, err := txsubmit.Submit(ctx, k.eth, k.privateKey, k.oraclesAddr, data, k.txConfig())
	if err != nil {
		return fmt.Errorf("submit validators: %w", err)
	}
	k.metrics.TxSubmitted.Inc()
	log.Printf("submitted validators update: nonce=%d root=%s tx=%s", state.CurrentValidatorsNonce, payload.ValidatorsRoot, receipt.TxHash.Hex())
	return nil
}

func (k *keeperTick) txConfig() txsubmit.Config {
	return txsubmit.Config{
		MaxFeePerGasGwei:            k.cfg.KeeperMaxFeePerGasGwei,
		MinEffectivePriorityFeeGwei: k.cfg.MinEffectivePriorityFeeGwei,
		SecondsPerBlock:             k.cfg.SecondsPerBlock,
		ConfirmationBlocks:          int64(k.cfg.ConfirmationBlocks),
		Timeout:                     k.cfg.TransactionTimeout,
	}
}
