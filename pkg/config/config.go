// Package config loads the environment-variable configuration shared by the
// oracle and keeper daemons.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BeaconAPIFlavor selects how validator public keys are encoded onto the
// beacon REST `id` query parameter (§6).
type BeaconAPIFlavor string

const (
	BeaconFlavorLighthouse BeaconAPIFlavor = "lighthouse" // comma-joined ids
	BeaconFlavorPrysmTeku  BeaconAPIFlavor = "prysm-teku" // repeated &id=
)

// Config holds all configuration for both the oracle and keeper daemons.
// Fields unused by one daemon are simply left at their zero value.
type Config struct {
	// Network identification
	NetworkName string

	// Ethereum execution-layer RPC
	EthereumURL string
	EthChainID  int64

	// Beacon chain REST API
	BeaconAPIURL    string
	BeaconAPIFlavor BeaconAPIFlavor
	GenesisTime     int64 // unix seconds; 0 means "fetch from /eth/v1/beacon/genesis"
	SecondsPerEpoch int64
	SlotsPerEpoch   int64

	// Subgraph endpoints (comma-separated lists become []string)
	StakewiseSubgraphURLs  []string
	UniswapV3SubgraphURLs  []string
	EthereumSubgraphURLs   []string
	ConfirmationBlocks     int
	SyncPeriod             time.Duration

	// Oracle signing key (secp256k1, hex-encoded, no defaults for security)
	OraclePrivateKey string

	// Vote publication bucket (S3-compatible)
	VoteBucketName   string
	VoteBucketRegion string
	VoteBucketURL    string // override for S3-compatible endpoints; empty means AWS default

	// IPFS / blob store
	IPFSPinEndpoints  []string
	IPFSFetchEndpoints []string
	IPFSPinningServiceURL   string
	IPFSPinningServiceToken string

	// Contract addresses
	OraclesContractAddress   string
	MulticallContractAddress string

	// Reward routing token addresses (spec.md 4.6's three named tokens)
	RewardTokenAddress string
	StakedTokenAddress string
	SwiseTokenAddress  string

	// Keeper transaction parameters
	KeeperMaxFeePerGasGwei      int64
	MinEffectivePriorityFeeGwei int64
	TransactionTimeout          time.Duration
	SecondsPerBlock             time.Duration

	// Validator registration
	ValidatorBatchSizeConfigured int64
	GovernanceExchangeRateBps    int64 // basis points multiplier applied to pool balance on governance chains
	OperatorWeights              [3]int
	ValidatorsDepositRoot        string

	// Protocol routing
	OperatorRewardAddress string
	FallbackAddress       string

	// HTTP server addresses
	HealthAddr  string
	MetricsAddr string

	// Tick cadence
	ProcessInterval time.Duration

	LogLevel string
}

// Load reads configuration from environment variables. Call
// ValidateOracle() or ValidateKeeper() afterwards before starting a daemon.
func Load() (*Config, error) {
	cfg := &Config{
		NetworkName: getEnv("NETWORK_NAME", "mainnet"),

		EthereumURL: getEnv("ETHEREUM_URL", ""),
		EthChainID:  getEnvInt64("ETH_CHAIN_ID", 1),

		BeaconAPIURL:    getEnv("BEACON_API_URL", ""),
		BeaconAPIFlavor: BeaconAPIFlavor(getEnv("BEACON_API_FLAVOR", string(BeaconFlavorLighthouse))),
		GenesisTime:     getEnvInt64("BEACON_GENESIS_TIME", 0),
		SecondsPerEpoch: getEnvInt64("SECONDS_PER_EPOCH", 384),
		SlotsPerEpoch:   getEnvInt64("SLOTS_PER_EPOCH", 32),

		StakewiseSubgraphURLs: parseList(getEnv("STAKEWISE_SUBGRAPH_URLS", "")),
		UniswapV3SubgraphURLs: parseList(getEnv("UNISWAP_V3_SUBGRAPH_URLS", "")),
		EthereumSubgraphURLs:  parseList(getEnv("ETHEREUM_SUBGRAPH_URLS", "")),
		ConfirmationBlocks:    getEnvInt("CONFIRMATION_BLOCKS", 15),
		SyncPeriod:            getEnvDuration("SYNC_PERIOD", 24*time.Hour),

		OraclePrivateKey: getEnv("ORACLE_PRIVATE_KEY", ""),

		VoteBucketName:   getEnv("VOTE_BUCKET_NAME", ""),
		VoteBucketRegion: getEnv("VOTE_BUCKET_REGION", "us-east-1"),
		VoteBucketURL:    getEnv("VOTE_BUCKET_URL", ""),

		IPFSPinEndpoints:        parseList(getEnv("IPFS_PIN_ENDPOINTS", "")),
		IPFSFetchEndpoints:      parseList(getEnv("IPFS_FETCH_ENDPOINTS", "https://ipfs.io,https://cloudflare-ipfs.com")),
		IPFSPinningServiceURL:   getEnv("IPFS_PINNING_SERVICE_URL", ""),
		IPFSPinningServiceToken: getEnv("IPFS_PINNING_SERVICE_TOKEN", ""),

		OraclesContractAddress:   getEnv("ORACLES_CONTRACT_ADDRESS", ""),
		MulticallContractAddress: getEnv("MULTICALL_CONTRACT_ADDRESS", ""),

		RewardTokenAddress: getEnv("REWARD_TOKEN_CONTRACT_ADDRESS", ""),
		StakedTokenAddress: getEnv("STAKED_TOKEN_CONTRACT_ADDRESS", ""),
		SwiseTokenAddress:  getEnv("SWISE_TOKEN_CONTRACT_ADDRESS", ""),

		KeeperMaxFeePerGasGwei:      getEnvInt64("KEEPER_MAX_FEE_PER_GAS_GWEI", 500),
		MinEffectivePriorityFeeGwei: getEnvInt64("MIN_EFFECTIVE_PRIORITY_FEE_GWEI", 0),
		TransactionTimeout:          getEnvDuration("TRANSACTION_TIMEOUT", 15*time.Minute),
		SecondsPerBlock:             getEnvDuration("SECONDS_PER_BLOCK", 12*time.Second),

		ValidatorBatchSizeConfigured: getEnvInt64("VALIDATOR_BATCH_SIZE", 10),
		GovernanceExchangeRateBps:    getEnvInt64("GOVERNANCE_EXCHANGE_RATE_BPS", 10000),
		OperatorWeights:              [3]int{getEnvInt("OPERATOR_WEIGHT_1", 3), getEnvInt("OPERATOR_WEIGHT_2", 2), getEnvInt("OPERATOR_WEIGHT_3", 1)},
		ValidatorsDepositRoot:        getEnv("VALIDATORS_DEPOSIT_ROOT", ""),

		OperatorRewardAddress: getEnv("OPERATOR_REWARD_ADDRESS", ""),
		FallbackAddress:       getEnv("FALLBACK_ADDRESS", ""),

		HealthAddr:  getEnv("HEALTH_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		ProcessInterval: getEnvDuration("PROCESS_INTERVAL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// ValidateOracle checks that the configuration required to run the oracle daemon
// is present.
func (c *Config) ValidateOracle() error {
	var errs []string
	if c.EthereumURL == "" {
		errs = append(errs, "ETHEREUM_URL is required")
	}
	if c.BeaconAPIURL == "" {
		errs = append(errs, "BEACON_API_URL is required")
	}
	if len(c.StakewiseSubgraphURLs) == 0 {
		errs = append(errs, "STAKEWISE_SUBGRAPH_URLS is required")
	}
	if c.OraclePrivateKey == "" {
		errs = append(errs, "ORACLE_PRIVATE_KEY is required")
	}
	if c.VoteBucketName == "" {
		errs = append(errs, "VOTE_BUCKET_NAME is required")
	}
	if c.FallbackAddress == "" {
		errs = append(errs, "FALLBACK_ADDRESS is required")
	}
	if c.RewardTokenAddress == "" {
		errs = append(errs, "REWARD_TOKEN_CONTRACT_ADDRESS is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("oracle configuration invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateKeeper checks that the configuration required to run the keeper
// daemon is present.
func (c *Config) ValidateKeeper() error {
	var errs []string
	if c.EthereumURL == "" {
		errs = append(errs, "ETHEREUM_URL is required")
	}
	if c.OraclesContractAddress == "" {
		errs = append(errs, "ORACLES_CONTRACT_ADDRESS is required")
	}
	if c.MulticallContractAddress == "" {
		errs = append(errs, "MULTICALL_CONTRACT_ADDRESS is required")
	}
	if c.VoteBucketName == "" {
		errs = append(errs, "VOTE_BUCKET_NAME is required")
	}
	if c.OraclePrivateKey == "" {
		errs = append(errs, "ORACLE_PRIVATE_KEY is required (keeper pays gas from this account)")
	}
	if len(errs) > 0 {
		return fmt.Errorf("keeper configuration invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
