// Package anchor resolves the finalized chain point each tick should
// treat as ground truth, and the beacon epoch that corresponds to it.
package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oracle-keeper/validator/pkg/subgraph"
	"github.com/oracle-keeper/validator/pkg/types"
)

// ConsensusClient is the subset of subgraph.Client this package needs,
// narrowed so callers can pass a fake in tests.
type ConsensusClient interface {
	Query(ctx context.Context, urls []string, doc string, vars map[string]any) (json.RawMessage, error)
}

const queryFinalizedBlock = `
query FinalizedBlock($skip: Int!) {
  finalizedBlocks(first: 1, skip: $skip, orderBy: id, orderDirection: desc) {
    id
    blockNumber
    timestamp
  }
}
`

// FinalizedAnchor returns the block height and unix timestamp this tick
// should treat as finalized, offset back by confirmationBlocks rows to
// absorb subgraph indexing lag.
func FinalizedAnchor(ctx context.Context, client ConsensusClient, urls []string, confirmationBlocks int) (types.BlockHeight, types.UnixTime, error) {
	data, err := client.Query(ctx, urls, queryFinalizedBlock, map[string]any{"skip": confirmationBlocks})
	if err != nil {
		return 0, 0, fmt.Errorf("anchor: query finalized block: %w", err)
	}

	var page struct {
		FinalizedBlocks []struct {
			BlockNumber string `json:"blockNumber"`
			Timestamp   string `json:"timestamp"`
		} `json:"finalizedBlocks"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return 0, 0, fmt.Errorf("anchor: decode finalized block: %w", err)
	}
	if len(page.FinalizedBlocks) == 0 {
		return 0, 0, fmt.Errorf("anchor: no finalized block at skip=%d", confirmationBlocks)
	}

	row := page.FinalizedBlocks[0]
	var height uint64
	var ts int64
	if _, err := fmt.Sscan(row.BlockNumber, &height); err != nil {
		return 0, 0, fmt.Errorf("anchor: parse blockNumber: %w", err)
	}
	if _, err := fmt.Sscan(row.Timestamp, &ts); err != nil {
		return 0, 0, fmt.Errorf("anchor: parse timestamp: %w", err)
	}
	return types.BlockHeight(height), types.UnixTime(ts), nil
}

// CurrentBeaconEpoch is pure arithmetic: the epoch containing timestamp
// given the chain's genesis time and slot/epoch configuration.
func CurrentBeaconEpoch(timestamp types.UnixTime, genesisTime int64, secondsPerEpoch int64) uint64 {
	if int64(timestamp) <= genesisTime || secondsPerEpoch <= 0 {
		return 0
	}
	return uint64((int64(timestamp) - genesisTime) / secondsPerEpoch)
}

// AwaitIndexerSynced polls each subgraph's _meta block number until a
// majority report a height at or above target, or ctx is cancelled.
func AwaitIndexerSynced(ctx context.Context, client ConsensusClient, urls []string, target types.BlockHeight, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		heights := make([]int64, 0, len(urls))
		for _, u := range urls {
			data, err := client.Query(ctx, []string{u}, subgraph.QueryFinalizedBlock, nil)
			if err != nil {
				continue
			}
			var meta struct {
				Meta struct {
					Block struct {
						Number string `json:"number"`
					} `json:"block"`
				} `json:"_meta"`
			}
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			var n int64
			fmt.Sscan(meta.Meta.Block.Number, &n)
			heights = append(heights, n)
		}

		if h, ok := subgraph.MajorityMax(heights); ok && h >= int64(target) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
