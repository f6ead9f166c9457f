// Package marketdata provides a client for a historical daily-close
// price API, the last-resort source for movement prices.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/chaintax/chaintax/internal/common"
)

const (
	DefaultBaseURL   = "https://api.chaintax.io/marketdata"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client fetches historical USD closes, rate-limited and cached per
// symbol-day. Daily granularity is all the provider offers, so callers
// must treat results as approximations of the at-transaction price.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter

	mu    sync.RWMutex
	cache map[string]decimal.Decimal
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new market data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NopLogger(),
		cache:   make(map[string]decimal.Decimal),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 provider response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type dailyCloseResponse struct {
	Symbol string          `json:"symbol"`
	Date   string          `json:"date"`
	Close  decimal.Decimal `json:"close"`
}

// GetHistoricalPriceUSD returns the daily close for the symbol on the
// day containing the timestamp.
func (c *Client) GetHistoricalPriceUSD(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	day := at.UTC().Format("2006-01-02")
	key := strings.ToUpper(symbol) + "@" + day

	c.mu.RLock()
	if price, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return price, nil
	}
	c.mu.RUnlock()

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("date", day)

	var result dailyCloseResponse
	if err := c.get(ctx, "/daily", params, &result); err != nil {
		return decimal.Zero, err
	}
	if !result.Close.IsPositive() {
		return decimal.Zero, fmt.Errorf("no close price for %s on %s", symbol, day)
	}

	c.mu.Lock()
	c.cache[key] = result.Close
	c.mu.Unlock()

	return result.Close, nil
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_token", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Market data API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
