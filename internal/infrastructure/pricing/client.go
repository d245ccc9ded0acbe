// Package pricing talks to the DexScreener-style price aggregator API
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	defaultTimeout = 10 * time.Second

	// the token endpoint accepts at most this many comma separated addresses
	maxAddressesPerRequest = 30
)

// HTTPError is a non-2xx answer from the aggregator
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client fetches pair-level market data
type Client struct {
	httpClient      *http.Client
	baseURL         string
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = uint64(n)
	}
}

// WithBackoff sets the first and the largest wait between attempts
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = max
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates an aggregator client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient:      &http.Client{Timeout: defaultTimeout},
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     2 * time.Second,
		logger:          logger.With(zap.String("component", "pricing")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenPairs returns every pair that trades any of the given token addresses
func (c *Client) TokenPairs(ctx context.Context, addresses ...string) ([]PairData, error) {
	if len(addresses) == 0 {
		return nil, errors.New("no token addresses given")
	}

	var pairs []PairData
	for start := 0; start < len(addresses); start += maxAddressesPerRequest {
		end := min(start+maxAddressesPerRequest, len(addresses))
		path := "/latest/dex/tokens/" + strings.Join(addresses[start:end], ",")

		var resp PairsResponse
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, errors.Wrap(err, "fetch token pairs")
		}
		pairs = append(pairs, resp.Pairs...)
	}
	return pairs, nil
}

// Search returns the pairs matching a free-text query such as a symbol
func (c *Client) Search(ctx context.Context, query string) ([]PairData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}

	var resp PairsResponse
	if err := c.get(ctx, "/latest/dex/search?q="+url.QueryEscape(query), &resp); err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}
	return resp.Pairs, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	fullURL := c.baseURL + path
	start := time.Now()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(data)}
			if httpErr.Retryable() {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		body = data
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialInterval
	expBackoff.MaxInterval = c.maxInterval
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying price request",
			zap.String("url", fullURL),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		c.logger.Debug("price request failed",
			zap.String("url", fullURL),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
