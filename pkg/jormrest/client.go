// Package jormrest is a typed client for the Jormungandr node REST API (v0)
package jormrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const apiVersion = "v0"

// ClientConfig holds the node address, e.g. "http://127.0.0.1:8443/api" or "127.0.0.1:8443"
type ClientConfig struct {
	BaseAddress string
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests (timeouts, transport)
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithSink sets the diagnostic sink
func WithSink(s Sink) Option {
	return func(cl *Client) { cl.sink = s }
}

// WithStrictStatus makes non-2xx responses fail with KindRequestFailed
func WithStrictStatus() Option {
	return func(cl *Client) { cl.strictStatus = true }
}

// Client queries the node REST API. It holds no mutable state and is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	sink         Sink
	strictStatus bool
}

// New creates a client. The address is not validated here; a bad one surfaces
// as a KindRequestFailed error on first use.
func New(cfg ClientConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    normalizeBase(cfg.BaseAddress),
		sink:       NewWriterSink(os.Stdout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base address requests are built from
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL builds the full request URL for a path relative to /v0
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + apiVersion + "/" + strings.TrimLeft(path, "/")
}

// GetRaw issues GET {base}/v0/{path} and returns the body as text.
// The status code is not inspected unless WithStrictStatus is set.
func (c *Client) GetRaw(ctx context.Context, path string) (string, error) {
	url := c.URL(path)
	c.sink.Record(ctx, Entry{Kind: EntryRequest, URL: url})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", requestFailed(url, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", requestFailed(url, fmt.Errorf("making request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestFailed(url, fmt.Errorf("reading response: %w", err))
	}

	text := string(body)
	c.sink.Record(ctx, Entry{Kind: EntryResponse, URL: url, Status: resp.StatusCode, Body: text})

	if c.strictStatus && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return "", requestFailed(url, &StatusError{StatusCode: resp.StatusCode, Body: text})
	}

	return text, nil
}

// EpochRewardHistory returns the rewards computed for the given epoch
func (c *Client) EpochRewardHistory(ctx context.Context, epoch uint32) (EpochRewardsInfo, error) {
	return getJSON[EpochRewardsInfo](ctx, c, fmt.Sprintf("rewards/epoch/%d", epoch))
}

// RewardHistory returns the rewards of up to length most recent epochs
func (c *Client) RewardHistory(ctx context.Context, length uint32) ([]EpochRewardsInfo, error) {
	return getJSON[[]EpochRewardsInfo](ctx, c, fmt.Sprintf("rewards/history/%d", length))
}

// StakeDistribution returns the current stake distribution
func (c *Client) StakeDistribution(ctx context.Context) (StakeDistributionInfo, error) {
	return getJSON[StakeDistributionInfo](ctx, c, "stake")
}

// StakeDistributionAt returns the stake distribution at the given epoch
func (c *Client) StakeDistributionAt(ctx context.Context, epoch uint32) (StakeDistributionInfo, error) {
	return getJSON[StakeDistributionInfo](ctx, c, fmt.Sprintf("stake/%d", epoch))
}

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T

	text, err := c.GetRaw(ctx, path)
	if err != nil {
		return out, err
	}

	if strings.TrimSpace(text) == "null" {
		return out, deserializationFailed(c.URL(path), ErrNullBody)
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, deserializationFailed(c.URL(path), fmt.Errorf("decoding response: %w", err))
	}
	return out, nil
}

// normalizeBase strips trailing slashes and defaults bare host:port addresses to http
func normalizeBase(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr != "" && !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}
