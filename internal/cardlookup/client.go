// Package cardlookup resolves cards by id or name and searches the card API.
package cardlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

const (
	// DefaultBaseURL is the card API's local address.
	DefaultBaseURL = "http://localhost:3839/api"

	defaultRateLimit = 100 * time.Millisecond
	requestTimeout   = 30 * time.Second
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
	maxBackoff       = 16 * time.Second
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	RateLimit  time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.RemoteMetrics
	Logger     *zap.Logger

	// InitialBackoff overrides the first 429 retry delay.
	InitialBackoff time.Duration
}

// Client is a rate-limited card API client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	metrics        *metrics.RemoteMetrics
	logger         *zap.Logger
	initialBackoff time.Duration
}

// NewClient creates a card API client.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = initialBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     httpClient,
		rateLimiter:    rate.NewLimiter(rate.Every(limit), 1),
		metrics:        opts.Metrics,
		logger:         logger,
		initialBackoff: backoff,
	}
}

// GetByID retrieves a card by id.
func (c *Client) GetByID(ctx context.Context, id string) (*cards.Card, error) {
	var card cards.Card
	if err := c.doRequest(ctx, "cards.get_by_id", "/cards/"+url.PathEscape(id), &card); err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return &card, nil
}

// GetByName retrieves a card by exact name.
func (c *Client) GetByName(ctx context.Context, name string) (*cards.Card, error) {
	var card cards.Card
	if err := c.doRequest(ctx, "cards.get_by_name", "/cards/named/"+url.PathEscape(name), &card); err != nil {
		return nil, fmt.Errorf("failed to get card %q: %w", name, err)
	}
	return &card, nil
}

type autocompleteResponse struct {
	Cards []*cards.Card `json:"cards"`
}

// Autocomplete returns the English-named cards matching a partial name.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]*cards.Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*cards.Card{}, nil
	}

	var resp autocompleteResponse
	if err := c.doRequest(ctx, "cards.autocomplete", "/cards/autocomplete/"+url.PathEscape(query), &resp); err != nil {
		return nil, fmt.Errorf("failed to autocomplete %q: %w", query, err)
	}
	return cards.FilterEnglish(resp.Cards), nil
}

// doRequest performs a GET with rate limiting, retrying network errors and
// HTTP 429 with exponential backoff.
func (c *Client) doRequest(ctx context.Context, op, path string, result any) (err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(op, start, err) }()

	url := c.baseURL + path
	var lastErr error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < maxRetries {
				c.logger.Debug("card API request failed, retrying",
					zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
				if err := sleep(ctx, backoff); err != nil {
					return err
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return lastErr
		}

		done, wait, err := c.handleResponse(resp, url, result)
		if done {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			if wait <= 0 {
				wait = backoff
			}
			c.logger.Debug("card API rate limited, backing off",
				zap.String("op", op), zap.Duration("wait", wait))
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// handleResponse consumes resp. done is false only for a retryable 429, in
// which case wait is the server's Retry-After (zero when absent).
func (c *Client) handleResponse(resp *http.Response, url string, result any) (done bool, wait time.Duration, err error) {
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return true, 0, fmt.Errorf("failed to read response body: %w", err)
		}
		if err := json.Unmarshal(body, result); err != nil {
			return true, 0, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return true, 0, nil

	case http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		return false, wait, fmt.Errorf("rate limited (HTTP 429)")

	case http.StatusNotFound:
		return true, 0, &NotFoundError{URL: url}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		details := strings.TrimSpace(string(body))
		var payload struct {
			Detail  string `json:"detail"`
			Details string `json:"details"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			for _, s := range []string{payload.Detail, payload.Details, payload.Message} {
				if s != "" {
					details = s
					break
				}
			}
		}
		if details == "" {
			details = http.StatusText(resp.StatusCode)
		}
		return true, 0, &APIError{Status: resp.StatusCode, Details: details}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
