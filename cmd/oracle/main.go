// Command oracle runs the off-chain oracle daemon: each tick it resolves
// the network's finalized anchor point, computes the rewards total and
// from it the merkle distribution vote, builds the validator-registration
// vote for that point, signs both, and publishes them to the public vote
// bucket for the keeper to aggregate. No separate rewards vote is
// published; the rewards total only feeds the distribution plan.
package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oracle-keeper/validator/pkg/anchor"
	"github.com/oracle-keeper/validator/pkg/beacon"
	"github.com/oracle-keeper/validator/pkg/blobstore"
	"github.com/oracle-keeper/validator/pkg/config"
	"github.com/oracle-keeper/validator/pkg/distribution"
	"github.com/oracle-keeper/validator/pkg/ethereum"
	"github.com/oracle-keeper/validator/pkg/healthz"
	"github.com/oracle-keeper/validator/pkg/indexer"
	"github.com/oracle-keeper/validator/pkg/ipfs"
	"github.com/oracle-keeper/validator/pkg/merkle"
	"github.com/oracle-keeper/validator/pkg/registration"
	"github.com/oracle-keeper/validator/pkg/retry"
	"github.com/oracle-keeper/validator/pkg/rewardsagg"
	"github.com/oracle-keeper/validator/pkg/routing"
	"github.com/oracle-keeper/validator/pkg/subgraph"
	"github.com/oracle-keeper/validator/pkg/ticker"
	"github.com/oracle-keeper/validator/pkg/types"
	"github.com/oracle-keeper/validator/pkg/vote"
	"github.com/oracle-keeper/validator/pkg/votingparams"
)

func main() {
	var configCheck = flag.Bool("config-check", false, "load and validate configuration, then exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("starting oracle daemon")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if err := cfg.ValidateOracle(); err != nil {
		log.Fatalf("%v", err)
	}
	if *configCheck {
		log.Println("configuration OK")
		return
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OraclePrivateKey, "0x"))
	if err != nil {
		log.Fatalf("parse oracle private key: %v", err)
	}
	oracleAddress := crypto.PubkeyToAddress(privateKey.PublicKey)
	log.Printf("oracle address: %s", oracleAddress.Hex())

	ethClient, err := ethereum.NewClient(cfg.EthereumURL, cfg.EthChainID)
	if err != nil {
		log.Fatalf("connect ethereum: %v", err)
	}

	beaconClient := beacon.New(cfg.BeaconAPIURL, beacon.Flavor(cfg.BeaconAPIFlavor))

	subgraphClient := subgraph.New()
	idx := &indexer.Client{
		Subgraph:              subgraphClient,
		UniswapV3SubgraphURLs: cfg.UniswapV3SubgraphURLs,
		StakewiseSubgraphURLs: cfg.StakewiseSubgraphURLs,
	}

	ipfsClient := ipfs.New(cfg.IPFSPinEndpoints, cfg.IPFSFetchEndpoints, cfg.IPFSPinningServiceURL, cfg.IPFSPinningServiceToken)

	ctx, cancel := context.WithCancel(context.Background())

	store, err := blobstore.New(ctx, cfg.VoteBucketName, cfg.VoteBucketRegion, cfg.VoteBucketURL, "", "")
	if err != nil {
		cancel()
		log.Fatalf("connect vote bucket: %v", err)
	}

	status := healthz.New("oracle")
	reg := prometheus.NewRegistry()
	metrics := healthz.NewMetrics(reg, "oracle")

	go func() {
		log.Printf("health/metrics listening on %s", cfg.HealthAddr)
		if err := healthz.Serve(cfg.HealthAddr, status, reg); err != nil {
			log.Printf("health server stopped: %v", err)
		}
	}()

	routingEngine := &routing.Engine{
		Redirects:       map[types.Address]types.Address{},
		Routable:        map[types.Address]bool{},
		Sources:         map[types.Address]routing.BalanceSource{},
		FallbackAddress: common.HexToAddress(cfg.FallbackAddress),
	}

	o := &oracleTick{
		cfg:            cfg,
		eth:            ethClient,
		beacon:         beaconClient,
		subgraph:       subgraphClient,
		idx:            idx,
		ipfs:           ipfsClient,
		store:          store,
		privateKey:     privateKey,
		oracleAddress:  oracleAddress,
		routingEngine:  routingEngine,
		status:         status,
		metrics:        metrics,
		prevValidators: nil,
	}

	loop := ticker.New(cfg.ProcessInterval, o.run, log.New(log.Writer(), "[oracle] ", log.LstdFlags))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go loop.Run(ctx)

	<-quit
	log.Println("shutting down oracle daemon")
	loop.Stop()
	cancel()
}

// oracleTick carries everything one tick needs to resolve the network's
// state and publish this oracle's vote for it.
type oracleTick struct {
	cfg           *config.Config
	eth           *ethereum.Client
	beacon        *beacon.Client
	subgraph      *subgraph.Client
	idx           *indexer.Client
	ipfs          *ipfs.Client
	store         *blobstore.Store
	privateKey    *ecdsa.PrivateKey
	oracleAddress common.Address
	routingEngine *routing.Engine

	status  *healthz.Status
	metrics *healthz.Metrics

	prevValidators     []registration.Selection
	prevValidatorsRoot common.Hash
}

func (o *oracleTick) run(ctx context.Context) error {
	correlationID := uuid.NewString()
	log.Printf("tick %s starting", correlationID)
	o.metrics.TicksRun.Inc()

	height, ts, err := anchor.FinalizedAnchor(ctx, o.subgraph, o.cfg.EthereumSubgraphURLs, o.cfg.ConfirmationBlocks)
	if err != nil {
		o.status.SetEthereum("disconnected")
		o.metrics.TicksFailed.Inc()
		return fmt.Errorf("oracle tick %s: finalized anchor: %w", correlationID, err)
	}
	o.status.SetEthereum("connected")

	urls := append(append([]string{}, o.cfg.StakewiseSubgraphURLs...), o.cfg.UniswapV3SubgraphURLs...)
	if err := anchor.AwaitIndexerSynced(ctx, o.subgraph, urls, height, 10*time.Second); err != nil {
		o.metrics.TicksFailed.Inc()
		return fmt.Errorf("oracle tick %s: await indexer sync: %w", correlationID, err)
	}

	params, err := votingparams.FetchVotingParameters(ctx, o.subgraph, o.cfg.StakewiseSubgraphURLs, height)
	if err != nil {
		o.metrics.TicksFailed.Inc()
		return fmt.Errorf("oracle tick %s: voting parameters: %w", correlationID, err)
	}

	if err := retry.WithBackoff(ctx, 15*time.Minute, func(ctx context.Context) error {
		return o.voteDistribution(ctx, height, ts, params)
	}); err != nil {
		o.metrics.TicksFailed.Inc()
		return fmt.Errorf("oracle tick %s: distributor vote: %w", correlationID, err)
	}
	o.metrics.VotesPublished.Inc()

	if err := retry.WithBackoff(ctx, 15*time.Minute, func(ctx context.Context) error {
		return o.voteValidators(ctx, params)
	}); err != nil {
		o.metrics.TicksFailed.Inc()
		return fmt.Errorf("oracle tick %s: validators vote: %w", correlationID, err)
	}
	o.metrics.VotesPublished.Inc()

	log.Printf("tick %s complete at height %d", correlationID, height)
	return nil
}

// refreshRoutingEngine rebuilds the routing engine's redirect table and
// routable pool set from the indexer, so distribution records planned
// against this tick's anchor route against this tick's pool graph.
func (o *oracleTick) refreshRoutingEngine(ctx context.Context, blockNumber types.BlockHeight) error {
	redirects, err := o.idx.DistributorRedirects(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("distributor redirects: %w", err)
	}

	rewardToken := common.HexToAddress(o.cfg.RewardTokenAddress)
	stakedToken := common.HexToAddress(o.cfg.StakedTokenAddress)
	swiseToken := common.HexToAddress(o.cfg.SwiseTokenAddress)
	pools, err := o.idx.UniswapV3Pools(ctx, blockNumber, rewardToken, stakedToken, swiseToken)
	if err != nil {
		return fmt.Errorf("uniswap v3 pools: %w", err)
	}

	routable := map[types.Address]bool{}
	sources := map[types.Address]routing.BalanceSource{}
	for pool := range pools.SwisePools {
		routable[pool] = true
		sources[pool] = routing.NewUniswapFullRangeSource(o.idx)
	}
	for pool := range pools.StakedTokenPools {
		if pools.SwisePools[pool] {
			continue
		}
		routable[pool] = true
		sources[pool] = routing.NewUniswapCurrentTickSource(o.idx)
	}
	for pool := range pools.RewardTokenPools {
		if pools.SwisePools[pool] || pools.StakedTokenPools[pool] {
			continue
		}
		routable[pool] = true
		sources[pool] = routing.NewUniswapCurrentTickSource(o.idx)
	}

	o.routingEngine.Redirects = redirects
	o.routingEngine.Routable = routable
	o.routingEngine.Sources = sources
	return nil
}

func (o *oracleTick) voteDistribution(ctx context.Context, height types.BlockHeight, ts types.UnixTime, params votingparams.Parameters) error {
	genesisTime := o.cfg.GenesisTime
	if genesisTime == 0 {
		genesis, err := o.beacon.Genesis(ctx)
		if err != nil {
			return fmt.Errorf("beacon genesis: %w", err)
		}
		genesisTime = genesis.GenesisTime
	}

	rewardsVote, err := rewardsagg.Compute(ctx, rewardsagg.Inputs{
		Nonce:                         params.RewardsNonce,
		LastUpdateTime:                ts - types.UnixTime(o.cfg.SyncPeriod/time.Second),
		SyncPeriod:                    o.cfg.SyncPeriod,
		Now:                           ts,
		GenesisTime:                   genesisTime,
		SecondsPerEpoch:               o.cfg.SecondsPerEpoch,
		SlotsPerEpoch:                 o.cfg.SlotsPerEpoch,
		PreviousTotalRewardsFromVotes: big.NewInt(0),
		ValidatorPubkeys:              nil,
		Beacon:                        o.beacon,
		PollInterval:                  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("compute rewards: %w", err)
	}
	if rewardsVote.Skipped {
		log.Println("rewards vote skipped: sync period has not elapsed")
		return nil
	}

	fromBlock := height - types.BlockHeight(o.cfg.ConfirmationBlocks)
	if err := o.refreshRoutingEngine(ctx, height); err != nil {
		return fmt.Errorf("refresh routing engine: %w", err)
	}

	routable, rewards, err := distribution.Plan(ctx, distribution.PlanInputs{
		FromBlock:            fromBlock,
		ToBlock:              height,
		DistributorReward:    rewardsVote.TotalRewards,
		ProtocolReward:       big.NewInt(0),
		RewardToken:          common.HexToAddress(o.cfg.RewardTokenAddress),
		RewardPerTokenGlobal: big.NewInt(0),
		OperatorAddress:      common.HexToAddress(o.cfg.OperatorRewardAddress),
		FallbackAddress:      common.HexToAddress(o.cfg.FallbackAddress),
		IPFS:                 o.ipfs,
	})
	if err != nil {
		return fmt.Errorf("plan distribution: %w", err)
	}

	for _, d := range routable {
		o.routingEngine.RewardToken = d.RewardToken
		routed, err := o.routingEngine.GetRewards(ctx, d.Contract, d.Reward.Int)
		if err != nil {
			return fmt.Errorf("route rewards for %s: %w", d.Contract.Hex(), err)
		}
		rewards.Merge(routed)
	}

	claimList := rewards.ToClaims()
	claims := make([]merkle.Claim, len(claimList))
	for i, c := range claimList {
		claims[i] = merkle.Claim{Index: c.Index, Account: c.Account, Tokens: c.Tokens, Amounts: c.Amounts}
	}

	var merkleRoot common.Hash
	proofsURL := params.ProofsURL
	if len(claims) > 0 {
		leaves := make([][]byte, len(claims))
		for i, c := range claims {
			leafHash, err := merkle.LeafHash(c)
			if err != nil {
				return fmt.Errorf("leaf hash: %w", err)
			}
			leaves[i] = leafHash
		}
		tree, err := merkle.Build(leaves)
		if err != nil {
			return fmt.Errorf("build merkle tree: %w", err)
		}
		merkleRoot = common.BytesToHash(tree.Root())

		proofsCID, err := o.ipfs.Pin(ctx, marshalProofsBundle(claims, tree))
		if err != nil {
			return fmt.Errorf("pin proofs bundle: %w", err)
		}
		proofsURL = proofsCID
	} else {
		merkleRoot = params.MerkleRoot
	}

	signedVote, err := vote.SignDistributorVote(o.privateKey, params.RewardsNonce, merkleRoot, proofsURL)
	if err != nil {
		return fmt.Errorf("sign distributor vote: %w", err)
	}
	if err := vote.PublishDistributorVote(ctx, o.store, o.oracleAddress, signedVote); err != nil {
		return fmt.Errorf("publish distributor vote: %w", err)
	}
	log.Printf("published distributor vote: nonce=%d root=%s", params.RewardsNonce, merkleRoot.Hex())
	return nil
}

func (o *oracleTick) voteValidators(ctx context.Context, params votingparams.Parameters) error {
	poolBalance, err := o.eth.GetBalance(ctx, common.HexToAddress(o.cfg.OraclesContractAddress))
	if err != nil {
		return fmt.Errorf("pool balance: %w", err)
	}

	weights := registration.Weights(o.cfg.OperatorWeights)
	selections, err := registration.SelectBatch(ctx, o.idx, registration.Config{
		ConfiguredBatchSize:       int(o.cfg.ValidatorBatchSizeConfigured),
		PoolBalanceWei:            poolBalance,
		GovernanceExchangeRateBps: int(o.cfg.GovernanceExchangeRateBps),
		Weights:                   weights,
	})
	if err != nil {
		return fmt.Errorf("select validator batch: %w", err)
	}
	if len(selections) == 0 {
		log.Println("validators vote skipped: no eligible operators this tick")
		return nil
	}

	depositRoot := common.HexToHash(o.cfg.ValidatorsDepositRoot)
	validatorsRoot := computeValidatorsRoot(selections, depositRoot)

	if registration.SuppressIfUnchanged(validatorsRoot, o.prevValidatorsRoot, selections, o.prevValidators) {
		log.Println("validators vote skipped: unchanged from previous tick")
		return nil
	}

	validatorsIPFSRef, err := o.ipfs.Pin(ctx, marshalSelections(selections))
	if err != nil {
		return fmt.Errorf("pin validator selections: %w", err)
	}

	signedVote, err := vote.SignValidatorsVote(o.privateKey, params.ValidatorsNonce, validatorsRoot, validatorsIPFSRef)
	if err != nil {
		return fmt.Errorf("sign validators vote: %w", err)
	}
	if err := vote.PublishValidatorsVote(ctx, o.store, o.oracleAddress, signedVote); err != nil {
		return fmt.Errorf("publish validators vote: %w", err)
	}

	o.prevValidators = selections
	o.prevValidatorsRoot = validatorsRoot
	log.Printf("published validators vote: nonce=%d batch=%d", params.ValidatorsNonce, len(selections))
	return nil
}

func computeValidatorsRoot(selections []registration.Selection, depositRoot common.Hash) common.Hash {
	var buf []byte
	buf = append(buf, depositRoot.Bytes()...)
	for _, s := range selections {
		buf = append(buf, s.PublicKey...)
	}
	return common.BytesToHash(crypto.Keccak256(buf))
}

func marshalSelections(selections []registration.Selection) []byte {
	var sb strings.Builder
	sb.WriteString("[")
	for i, s := range selections {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"operator":%q,"public_key":"0x%x"}`, s.OperatorID, s.PublicKey)
	}
	sb.WriteString("]")
	return []byte(sb.String())
}

func marshalProofsBundle(claims []merkle.Claim, tree *merkle.Tree) []byte {
	var sb strings.Builder
	sb.WriteString("{")
	for i, c := range claims {
		if i > 0 {
			sb.WriteString(",")
		}
		leafHash, _ := merkle.LeafHash(c)
		proof, _ := tree.Proof(leafHash)
		fmt.Fprintf(&sb, `"%s":{"index":%d,"proof":%s}`, c.Account.Hex(), c.Index, hexArray(proof))
	}
	sb.WriteString("}")
	return []byte(sb.String())
}

func hexArray(nodes [][]byte) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, n := range nodes {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `"0x%x"`, n)
	}
	sb.WriteString("]")
	return sb.String()
}
