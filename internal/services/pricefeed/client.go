// Package pricefeed keeps the BTC/USD reference price fresh. A CoinGecko
// client fetches spot prices, and the service layer layers snapshotting,
// deduplication, and a circuit breaker on top before pushing updates into
// the routing engine.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/utils"
)

const (
	// DefaultBaseURL is the public CoinGecko API root.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	simplePricePath = "/simple/price"
	priceQuery      = "ids=bitcoin&vs_currencies=usd"
)

// ClientConfig holds configuration for the price feed HTTP client.
type ClientConfig struct {
	BaseURL             string
	Timeout             time.Duration
	Retries             int
	RetryDelay          time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultClientConfig returns optimized defaults for the price feed client.
func DefaultClientConfig(baseURL string) *ClientConfig {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ClientConfig{
		BaseURL:             baseURL,
		Timeout:             5 * time.Second,
		Retries:             2,
		RetryDelay:          500 * time.Millisecond,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Client fetches BTC/USD spot prices with connection pooling and bounded
// retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

// NewClient creates a price feed client against the given API root.
func NewClient(baseURL string) *Client {
	return NewClientWithConfig(DefaultClientConfig(baseURL))
}

// NewClientWithConfig creates a price feed client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	retries := config.Retries
	if retries < 0 {
		retries = 0
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// simplePriceResponse mirrors CoinGecko's /simple/price payload.
type simplePriceResponse struct {
	Bitcoin struct {
		USD float64 `json:"usd"`
	} `json:"bitcoin"`
}

// statusError carries a non-2xx response for retry classification.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("price API returned status %d: %s", e.code, e.body)
}

// FetchPrice returns the current BTC/USD spot price. It retries transient
// failures with linear backoff up to the configured attempt budget.
func (c *Client) FetchPrice(ctx context.Context) (float64, error) {
	reqURL, err := url.JoinPath(c.baseURL, simplePricePath)
	if err != nil {
		return 0, fmt.Errorf("building price URL: %w", err)
	}
	reqURL += "?" + priceQuery

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.retryDelay
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		price, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			return price, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return 0, fmt.Errorf("price fetch failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "autorouter/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing price request: %w", err)
	}
	defer resp.Body.Close()

	buf := utils.Get()
	defer utils.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(resp.Body, 1<<20)); err != nil {
		return 0, fmt.Errorf("reading price response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &statusError{code: resp.StatusCode, body: buf.String()}
	}

	var parsed simplePriceResponse
	if err := json.Unmarshal(buf.B, &parsed); err != nil {
		return 0, fmt.Errorf("decoding price response: %w", err)
	}

	if parsed.Bitcoin.USD <= 0 {
		return 0, fmt.Errorf("price API returned non-positive price %f", parsed.Bitcoin.USD)
	}

	return parsed.Bitcoin.USD, nil
}

// isRetryableError classifies timeouts, 429s, and 5xx responses as worth
// another attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}

	return false
}

// Close releases idle connections.
func (c *Client) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
