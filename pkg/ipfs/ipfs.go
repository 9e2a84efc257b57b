// Package ipfs fetches and pins the content-addressed blobs the
// distribution planner and the validator registration vote reference:
// one-time beneficiary lists, Merkle proof bundles, and validator
// metadata. Grounded on the pin-endpoints-first, then-gateways fallback
// order of the reference implementation's ipfs_fetch.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client fetches by content ID across configured pinning services and
// public gateways, and pins new content to the configured pinning service.
type Client struct {
	PinEndpoints         []string // e.g. https://my-pinning-node/ipfs/
	FetchEndpoints       []string // public gateway fallbacks, e.g. https://ipfs.io/ipfs/
	PinningServiceURL    string   // pinning-services API (pinata-style) base URL
	PinningServiceToken  string
	HTTP                 *http.Client
}

func New(pinEndpoints, fetchEndpoints []string, pinningServiceURL, pinningServiceToken string) *Client {
	return &Client{
		PinEndpoints:        pinEndpoints,
		FetchEndpoints:      fetchEndpoints,
		PinningServiceURL:   pinningServiceURL,
		PinningServiceToken: pinningServiceToken,
		HTTP:                &http.Client{Timeout: 30 * time.Second},
	}
}

func normalizeRef(ref string) string {
	ref = strings.TrimPrefix(ref, "ipfs://")
	return strings.TrimPrefix(ref, "/ipfs/")
}

// Fetch retrieves the content at ref (a CID, with or without an ipfs://
// or /ipfs/ prefix), trying pin endpoints before falling back to public
// gateways.
func (c *Client) Fetch(ctx context.Context, ref string) (json.RawMessage, error) {
	cid := normalizeRef(ref)

	var lastErr error
	for _, base := range append(append([]string{}, c.PinEndpoints...), c.FetchEndpoints...) {
		data, err := c.fetchFrom(ctx, base, cid)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ipfs: fetch %s failed on every endpoint: %w", cid, lastErr)
}

func (c *Client) fetchFrom(ctx context.Context, base, cid string) (json.RawMessage, error) {
	url := strings.TrimRight(base, "/") + "/" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Pin uploads data to the single pinning service at PinningServiceURL
// (POST {url}/add) and returns the Hash it reports, without an ipfs://
// or /ipfs/ prefix. PinEndpoints are not pinned to, and no second
// service is asked to confirm the CID.
func (c *Client) Pin(ctx context.Context, data []byte) (string, error) {
	if c.PinningServiceURL == "" {
		return "", fmt.Errorf("ipfs: no pinning service configured")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "blob.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.PinningServiceURL, "/")+"/add", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.PinningServiceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.PinningServiceToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs: pin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs: pin returned status %d", resp.StatusCode)
	}

	var out struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ipfs: decode pin response: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("ipfs: pin response missing Hash")
	}
	return out.Hash, nil
}
