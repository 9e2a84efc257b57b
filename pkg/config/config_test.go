package config

import "testing"

func TestParseListTrimsAndDropsEmpty(t *testing.T) {
	got := parseList(" https://a.example , https://b.example ,,https://c.example")
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseListEmptyStringIsNil(t *testing.T) {
	if got := parseList(""); got != nil {
		t.Errorf("expected nil for an empty string, got %v", got)
	}
}

func TestValidateOracleReportsAllMissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateOracle()
	if err == nil {
		t.Fatal("expected an error for an empty config")
	}
	for _, want := range []string{"ETHEREUM_URL", "BEACON_API_URL", "STAKEWISE_SUBGRAPH_URLS", "ORACLE_PRIVATE_KEY", "VOTE_BUCKET_NAME", "FALLBACK_ADDRESS", "REWARD_TOKEN_CONTRACT_ADDRESS"} {
		if !contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestValidateOraclePassesWithAllFieldsSet(t *testing.T) {
	cfg := &Config{
		EthereumURL:           "https://rpc.example",
		BeaconAPIURL:          "https://beacon.example",
		StakewiseSubgraphURLs: []string{"https://subgraph.example"},
		OraclePrivateKey:      "deadbeef",
		VoteBucketName:        "votes",
		FallbackAddress:       "0xFallback",
		RewardTokenAddress:    "0xRewardToken",
	}
	if err := cfg.ValidateOracle(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateKeeperRequiresContractAddressesAndSigningKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateKeeper()
	if err == nil {
		t.Fatal("expected an error for an empty config")
	}
	for _, want := range []string{"ETHEREUM_URL", "ORACLES_CONTRACT_ADDRESS", "MULTICALL_CONTRACT_ADDRESS", "VOTE_BUCKET_NAME", "ORACLE_PRIVATE_KEY"} {
		if !contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestValidateKeeperPassesWithAllFieldsSet(t *testing.T) {
	cfg := &Config{
		EthereumURL:              "https://rpc.example",
		OraclesContractAddress:   "0xOracles",
		MulticallContractAddress: "0xMulticall",
		VoteBucketName:           "votes",
		OraclePrivateKey:         "deadbeef",
	}
	if err := cfg.ValidateKeeper(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetEnvHelpersFallBackToDefaultOnUnsetOrInvalid(t *testing.T) {
	if got := getEnv("CONFIG_TEST_UNSET_STRING", "fallback"); got != "fallback" {
		t.Errorf("getEnv default = %q, want fallback", got)
	}
	if got := getEnvInt("CONFIG_TEST_UNSET_INT", 7); got != 7 {
		t.Errorf("getEnvInt default = %d, want 7", got)
	}
	if got := getEnvInt64("CONFIG_TEST_UNSET_INT64", 8); got != 8 {
		t.Errorf("getEnvInt64 default = %d, want 8", got)
	}

	t.Setenv("CONFIG_TEST_INT", "not-a-number")
	if got := getEnvInt("CONFIG_TEST_INT", 42); got != 42 {
		t.Errorf("getEnvInt with invalid value = %d, want fallback 42", got)
	}

	t.Setenv("CONFIG_TEST_STRING", "set-value")
	if got := getEnv("CONFIG_TEST_STRING", "fallback"); got != "set-value" {
		t.Errorf("getEnv = %q, want set-value", got)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
