// Package meta fetches commander meta data: the most played commanders and,
// per commander, the recommended cards grouped by category.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

// Config configures the meta client.
type Config struct {
	// BaseURL is the meta API base, shared with the deck service.
	BaseURL string

	// CacheTTL is how long cached responses are served without refetching.
	CacheTTL time.Duration

	// RequestTimeout is the HTTP request timeout.
	RequestTimeout time.Duration

	// RateLimit is the minimum spacing between requests.
	RateLimit time.Duration

	// Concurrency bounds parallel category fetches.
	Concurrency int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:3839/api",
		CacheTTL:       6 * time.Hour,
		RequestTimeout: 30 * time.Second,
		RateLimit:      100 * time.Millisecond,
		Concurrency:    4,
	}
}

// Cache stores raw meta responses.
type Cache interface {
	SaveMeta(ctx context.Context, commander, category string, payload []byte) error
	GetMeta(ctx context.Context, commander, category string) ([]byte, time.Time, error)
}

// Response is the meta endpoint's payload.
type Response struct {
	Commander           string        `json:"commander"`
	AvailableCategories []string      `json:"available_categories,omitempty"`
	Message             string        `json:"message,omitempty"`
	Category            string        `json:"category,omitempty"`
	Cards               []*cards.Card `json:"cards,omitempty"`
}

// Client is a rate-limited, cached meta API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	cache       Cache
	cacheTTL    time.Duration
	rateLimiter *rate.Limiter
	concurrency int
	metrics     *metrics.RemoteMetrics
	logger      *zap.Logger
}

// NewClient creates a meta client. cache may be nil.
func NewClient(config *Config, cache Cache, m *metrics.RemoteMetrics, logger *zap.Logger) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaults.RequestTimeout
	}
	limit := config.RateLimit
	if limit <= 0 {
		limit = defaults.RateLimit
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		cache:       cache,
		cacheTTL:    config.CacheTTL,
		rateLimiter: rate.NewLimiter(rate.Every(limit), 1),
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

const topCommandersKey = "*"

// TopCommanders returns the most played commanders.
func (c *Client) TopCommanders(ctx context.Context) ([]*cards.Card, error) {
	var resp Response
	if err := c.fetch(ctx, "meta.top_commanders", "/commander/", topCommandersKey, "top", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch top commanders: %w", err)
	}
	return nonNil(resp.Cards), nil
}

// AvailableCategories returns the meta categories known for a commander.
// The service sometimes reports them only inside an error message, which is
// parsed when present.
func (c *Client) AvailableCategories(ctx context.Context, commander string) ([]string, error) {
	var resp Response
	err := c.fetch(ctx, "meta.categories", metaPath(commander, ""), cacheKey(commander), "", &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if categories := CategoriesFromError(statusErr.Body); len(categories) > 0 {
				return categories, nil
			}
		}
		return nil, fmt.Errorf("failed to fetch categories for %s: %w", commander, err)
	}
	if resp.AvailableCategories == nil {
		return []string{}, nil
	}
	return resp.AvailableCategories, nil
}

// CardsByCategory returns the meta cards of one category for a commander.
func (c *Client) CardsByCategory(ctx context.Context, commander, category string) ([]*cards.Card, error) {
	var resp Response
	if err := c.fetch(ctx, "meta.category_cards", metaPath(commander, category), cacheKey(commander), category, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s cards for %s: %w", category, commander, err)
	}
	return nonNil(resp.Cards), nil
}

// AllMetaCards fetches every category for a commander in parallel. Empty
// and failing categories are left out of the result.
func (c *Client) AllMetaCards(ctx context.Context, commander string) (map[string][]*cards.Card, error) {
	categories, err := c.AvailableCategories(ctx, commander)
	if err != nil {
		return nil, err
	}

	results := make([][]*cards.Card, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, category := range categories {
		g.Go(func() error {
			found, err := c.CardsByCategory(gctx, commander, category)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("meta category fetch failed",
					zap.String("commander", commander),
					zap.String("category", category),
					zap.Error(err))
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byCategory := make(map[string][]*cards.Card, len(categories))
	for i, category := range categories {
		if len(results[i]) > 0 {
			byCategory[category] = results[i]
		}
	}
	return byCategory, nil
}

// StatusError is a non-2xx meta response.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("meta API returned HTTP %d", e.Status)
}

func (c *Client) fetch(ctx context.Context, op, path, commander, category string, result any) (err error) {
	if payload, ok := c.cached(ctx, commander, category); ok {
		if err := json.Unmarshal(payload, result); err == nil {
			c.metrics.RecordCacheHit()
			return nil
		}
	}
	if c.cache != nil {
		c.metrics.RecordCacheMiss()
	}

	start := time.Now()
	defer func() { c.metrics.Observe(op, start, err) }()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Body: body}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.SaveMeta(ctx, commander, category, body); err != nil {
			c.logger.Warn("meta cache write failed", zap.String("commander", commander), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) cached(ctx context.Context, commander, category string) ([]byte, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	payload, fetchedAt, err := c.cache.GetMeta(ctx, commander, category)
	if err != nil {
		c.logger.Warn("meta cache read failed", zap.String("commander", commander), zap.Error(err))
		return nil, false
	}
	if payload == nil || time.Since(fetchedAt) >= c.cacheTTL {
		return nil, false
	}
	return payload, true
}

func metaPath(commander, category string) string {
	path := "/commander/" + url.PathEscape(commander) + "/meta"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	return path
}

func cacheKey(commander string) string {
	return strings.ToLower(strings.TrimSpace(commander))
}

func nonNil(found []*cards.Card) []*cards.Card {
	if found == nil {
		return []*cards.Card{}
	}
	return found
}
