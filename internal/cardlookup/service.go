package cardlookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
	"github.com/ramonehamilton/commander-builder/internal/storage"
)

// CardAPI is the remote side of the lookup service.
type CardAPI interface {
	GetByID(ctx context.Context, id string) (*cards.Card, error)
	GetByName(ctx context.Context, name string) (*cards.Card, error)
	Search(ctx context.Context, query string, page int) (*SearchResult, error)
}

// CardStore is the persistent cache.
type CardStore interface {
	SaveCard(ctx context.Context, card *cards.Card) error
	SaveCards(ctx context.Context, batch []*cards.Card) error
	GetCardByID(ctx context.Context, id string) (*storage.CachedCard, error)
	GetCardByName(ctx context.Context, name string) (*storage.CachedCard, error)
}

// ServiceOptions configures the lookup service.
type ServiceOptions struct {
	// StaleThreshold is how old a cached card may be before it is refetched.
	StaleThreshold time.Duration

	// MemoryCacheSize bounds the in-memory LRU.
	MemoryCacheSize int

	// Concurrency bounds parallel fetches in GetMany.
	Concurrency int

	Metrics *metrics.RemoteMetrics
	Logger  *zap.Logger
}

// DefaultServiceOptions returns the default cache settings.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		StaleThreshold:  7 * 24 * time.Hour,
		MemoryCacheSize: 2048,
		Concurrency:     4,
	}
}

type memoEntry struct {
	card    *cards.Card
	fetched time.Time
}

// Service resolves cards through an in-memory LRU, the SQLite cache, and
// finally the card API. A stale cached card is served when the API fails.
type Service struct {
	api            CardAPI
	store          CardStore
	memo           *lru.Cache
	staleThreshold time.Duration
	concurrency    int
	metrics        *metrics.RemoteMetrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a lookup service. store may be nil to disable the
// persistent cache.
func NewService(api CardAPI, store CardStore, options ServiceOptions) *Service {
	defaults := DefaultServiceOptions()
	if options.StaleThreshold <= 0 {
		options.StaleThreshold = defaults.StaleThreshold
	}
	if options.MemoryCacheSize <= 0 {
		options.MemoryCacheSize = defaults.MemoryCacheSize
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaults.Concurrency
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	memo, _ := lru.New(options.MemoryCacheSize)

	return &Service{
		api:            api,
		store:          store,
		memo:           memo,
		staleThreshold: options.StaleThreshold,
		concurrency:    options.Concurrency,
		metrics:        options.Metrics,
		logger:         logger,
		now:            time.Now,
	}
}

func idKey(id string) string     { return "id:" + id }
func nameKey(name string) string { return "name:" + strings.ToLower(strings.TrimSpace(name)) }

// GetByID resolves a card by id.
func (s *Service) GetByID(ctx context.Context, id string) (*cards.Card, error) {
	if id == "" {
		return nil, fmt.Errorf("card id cannot be empty")
	}
	return s.resolve(ctx, idKey(id),
		func() (*storage.CachedCard, error) { return s.store.GetCardByID(ctx, id) },
		func() (*cards.Card, error) { return s.api.GetByID(ctx, id) })
}

// GetByName resolves a card by exact name. An unknown name returns an
// error matching ErrCardNotFound.
func (s *Service) GetByName(ctx context.Context, name string) (*cards.Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("card name cannot be empty: %w", ErrCardNotFound)
	}
	return s.resolve(ctx, nameKey(name),
		func() (*storage.CachedCard, error) { return s.store.GetCardByName(ctx, name) },
		func() (*cards.Card, error) { return s.api.GetByName(ctx, name) })
}

func (s *Service) resolve(
	ctx context.Context,
	key string,
	fromStore func() (*storage.CachedCard, error),
	fromAPI func() (*cards.Card, error),
) (*cards.Card, error) {
	if v, ok := s.memo.Get(key); ok {
		entry := v.(memoEntry)
		if s.fresh(entry.fetched) {
			s.metrics.RecordCacheHit()
			return entry.card.Clone(), nil
		}
	}

	var stale *cards.Card
	if s.store != nil {
		cached, err := fromStore()
		if err != nil {
			s.logger.Warn("card cache read failed", zap.String("key", key), zap.Error(err))
		} else if cached != nil {
			if s.fresh(cached.LastUpdated) {
				s.metrics.RecordCacheHit()
				s.remember(cached.Card, cached.LastUpdated)
				return cached.Card.Clone(), nil
			}
			stale = cached.Card
		}
	}

	s.metrics.RecordCacheMiss()
	card, err := fromAPI()
	if err != nil {
		if stale != nil && !errors.Is(err, ErrCardNotFound) && ctx.Err() == nil {
			s.logger.Debug("serving stale card after lookup failure",
				zap.String("card", stale.Name), zap.Error(err))
			return stale.Clone(), nil
		}
		return nil, err
	}
	if card == nil || card.ID == "" {
		return nil, fmt.Errorf("card API returned an empty card: %w", ErrCardNotFound)
	}

	s.remember(card, s.now())
	if s.store != nil {
		if err := s.store.SaveCard(ctx, card); err != nil {
			s.logger.Warn("card cache write failed", zap.String("card_id", card.ID), zap.Error(err))
		}
	}
	return card.Clone(), nil
}

func (s *Service) fresh(at time.Time) bool {
	return s.now().Sub(at) < s.staleThreshold
}

func (s *Service) remember(card *cards.Card, at time.Time) {
	entry := memoEntry{card: card.Clone(), fetched: at}
	s.memo.Add(idKey(card.ID), entry)
	s.memo.Add(nameKey(card.Name), entry)
}

// Search returns a page of results and caches the cards it returned.
func (s *Service) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	result, err := s.api.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, card := range result.Cards {
		s.remember(card, now)
	}
	if s.store != nil && len(result.Cards) > 0 {
		if err := s.store.SaveCards(ctx, result.Cards); err != nil {
			s.logger.Warn("card cache write failed", zap.Int("cards", len(result.Cards)), zap.Error(err))
		}
	}
	return result, nil
}

// GetMany resolves several ids in parallel. Cards that fail to resolve are
// omitted; the result keeps the order of ids. Only context cancellation is
// returned as an error.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]*cards.Card, error) {
	resolved := make([]*cards.Card, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			card, err := s.GetByID(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Debug("card lookup failed", zap.String("card_id", id), zap.Error(err))
				return nil
			}
			resolved[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*cards.Card, 0, len(ids))
	for _, card := range resolved {
		if card != nil {
			out = append(out, card)
		}
	}
	return out, nil
}

// Purge drops the in-memory cache.
func (s *Service) Purge() {
	s.memo.Purge()
}
