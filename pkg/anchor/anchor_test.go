package anchor

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeConsensusClient struct {
	response json.RawMessage
	err      error
}

func (f fakeConsensusClient) Query(ctx context.Context, urls []string, doc string, vars map[string]any) (json.RawMessage, error) {
	return f.response, f.err
}

func TestFinalizedAnchorParsesBlockAndTimestamp(t *testing.T) {
	client := fakeConsensusClient{response: json.RawMessage(`{
		"finalizedBlocks": [{"blockNumber": "12345", "timestamp": "1700000000"}]
	}`)}

	height, ts, err := FinalizedAnchor(context.Background(), client, nil, 15)
	if err != nil {
		t.Fatalf("FinalizedAnchor: %v", err)
	}
	if height != 12345 {
		t.Errorf("height = %d, want 12345", height)
	}
	if ts != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", ts)
	}
}

func TestFinalizedAnchorErrorsWhenNoRowsReturned(t *testing.T) {
	client := fakeConsensusClient{response: json.RawMessage(`{"finalizedBlocks": []}`)}
	if _, _, err := FinalizedAnchor(context.Background(), client, nil, 15); err == nil {
		t.Error("expected an error when no finalized block is returned")
	}
}

func TestCurrentBeaconEpochComputesFromGenesis(t *testing.T) {
	// genesis at 0, 384 seconds per epoch, timestamp at 10 epochs in
	got := CurrentBeaconEpoch(3840, 0, 384)
	if got != 10 {
		t.Errorf("epoch = %d, want 10", got)
	}
}

func TestCurrentBeaconEpochBeforeGenesisIsZero(t *testing.T) {
	if got := CurrentBeaconEpoch(100, 1000, 384); got != 0 {
		t.Errorf("epoch before genesis = %d, want 0", got)
	}
}

func TestCurrentBeaconEpochZeroSecondsPerEpochIsZero(t *testing.T) {
	if got := CurrentBeaconEpoch(10000, 0, 0); got != 0 {
		t.Errorf("epoch with zero secondsPerEpoch = %d, want 0", got)
	}
}
