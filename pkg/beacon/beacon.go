// Package beacon is a minimal consensus-layer HTTP API client covering the
// three endpoints the rewards aggregator needs: genesis, finality
// checkpoints, and validator balances. It supports the two response
// shapes observed across client implementations: Lighthouse accepts a
// single comma-joined "id" query parameter, while Prysm and Teku require
// the id to be repeated once per validator.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Flavor string

const (
	FlavorLighthouse Flavor = "lighthouse"
	FlavorPrysmTeku  Flavor = "prysm-teku"
)

// validatorBatchSize caps how many pubkeys/indices are requested per call,
// matching the reference implementation's chunking to keep beacon API URLs
// under typical web server query-length limits.
const validatorBatchSize = 100

type Client struct {
	BaseURL string
	Flavor  Flavor
	HTTP    *http.Client
}

func New(baseURL string, flavor Flavor) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Flavor:  flavor,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type Genesis struct {
	GenesisTime           int64
	GenesisValidatorsRoot string
}

func (c *Client) Genesis(ctx context.Context) (Genesis, error) {
	var resp struct {
		Data struct {
			GenesisTime           string `json:"genesis_time"`
			GenesisValidatorsRoot string `json:"genesis_validators_root"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/eth/v1/beacon/genesis", &resp); err != nil {
		return Genesis{}, err
	}
	t, err := strconv.ParseInt(resp.Data.GenesisTime, 10, 64)
	if err != nil {
		return Genesis{}, fmt.Errorf("beacon: parse genesis_time: %w", err)
	}
	return Genesis{GenesisTime: t, GenesisValidatorsRoot: resp.Data.GenesisValidatorsRoot}, nil
}

type FinalityCheckpoint struct {
	Epoch int64
	Root  string
}

type FinalityCheckpoints struct {
	PreviousJustified FinalityCheckpoint
	CurrentJustified  FinalityCheckpoint
	Finalized         FinalityCheckpoint
}

func (c *Client) FinalityCheckpoints(ctx context.Context, stateID string) (FinalityCheckpoints, error) {
	var resp struct {
		Data struct {
			PreviousJustified struct {
				Epoch string `json:"epoch"`
				Root  string `json:"root"`
			} `json:"previous_justified"`
			CurrentJustified struct {
				Epoch string `json:"epoch"`
				Root  string `json:"root"`
			} `json:"current_justified"`
			Finalized struct {
				Epoch string `json:"epoch"`
				Root  string `json:"root"`
			} `json:"finalized"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/eth/v1/beacon/states/%s/finality_checkpoints", stateID)
	if err := c.get(ctx, path, &resp); err != nil {
		return FinalityCheckpoints{}, err
	}

	parse := func(epoch string) int64 {
		v, _ := strconv.ParseInt(epoch, 10, 64)
		return v
	}
	return FinalityCheckpoints{
		PreviousJustified: FinalityCheckpoint{Epoch: parse(resp.Data.PreviousJustified.Epoch), Root: resp.Data.PreviousJustified.Root},
		CurrentJustified:  FinalityCheckpoint{Epoch: parse(resp.Data.CurrentJustified.Epoch), Root: resp.Data.CurrentJustified.Root},
		Finalized:         FinalityCheckpoint{Epoch: parse(resp.Data.Finalized.Epoch), Root: resp.Data.Finalized.Root},
	}, nil
}

type Validator struct {
	Index     string
	Status    string
	Pubkey    string
	Balance   int64
	Activated bool
}

// Validators looks up the given pubkeys/indices at stateID, batching
// requests at validatorBatchSize and querying with the flavor-specific
// id parameter shape.
func (c *Client) Validators(ctx context.Context, stateID string, ids []string) ([]Validator, error) {
	var all []Validator
	for start := 0; start < len(ids); start += validatorBatchSize {
		end := start + validatorBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := c.validatorsBatch(ctx, stateID, ids[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (c *Client) validatorsBatch(ctx context.Context, stateID string, ids []string) ([]Validator, error) {
	path := fmt.Sprintf("/eth/v1/beacon/states/%s/validators", stateID)

	q := url.Values{}
	switch c.Flavor {
	case FlavorLighthouse:
		q.Set("id", strings.Join(ids, ","))
	default:
		for _, id := range ids {
			q.Add("id", id)
		}
	}

	var resp struct {
		Data []struct {
			Index     string `json:"index"`
			Status    string `json:"status"`
			Balance   string `json:"balance"`
			Validator struct {
				Pubkey string `json:"pubkey"`
			} `json:"validator"`
		} `json:"data"`
	}
	if err := c.getWithQuery(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	out := make([]Validator, 0, len(resp.Data))
	for _, v := range resp.Data {
		balance, _ := strconv.ParseInt(v.Balance, 10, 64)
		out = append(out, Validator{
			Index:     v.Index,
			Status:    v.Status,
			Pubkey:    v.Validator.Pubkey,
			Balance:   balance,
			Activated: strings.HasPrefix(v.Status, "active") || v.Status == "exited_unslashed" || v.Status == "exited_slashed",
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.getWithQuery(ctx, path, nil, out)
}

func (c *Client) getWithQuery(ctx context.Context, path string, q url.Values, out any) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("beacon: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("beacon: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
