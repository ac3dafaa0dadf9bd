package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/config"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
	"github.com/ramonehamilton/commander-builder/internal/events"
	"github.com/ramonehamilton/commander-builder/internal/meta"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
	"github.com/ramonehamilton/commander-builder/internal/storage"
)

// services is everything a command may call, built from one configuration.
type services struct {
	db         *storage.DB
	cardStore  *storage.CardStore
	metrics    *metrics.RemoteMetrics
	dispatcher *events.EventDispatcher
	backend    *backend.Client
	cards      *cardlookup.Service
	meta       *meta.Client
	manager    *deckstate.Manager
	logger     *zap.Logger
}

// newServices opens the card cache and builds the remote clients and the
// deck state manager.
func newServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	backendTimeout, err := cfg.GetBackendTimeout()
	if err != nil {
		return nil, fmt.Errorf("backend timeout: %w", err)
	}
	cardsTimeout, err := cfg.GetCardsTimeout()
	if err != nil {
		return nil, fmt.Errorf("cards timeout: %w", err)
	}
	rateLimit, err := cfg.GetCardsRateLimit()
	if err != nil {
		return nil, fmt.Errorf("cards rate limit: %w", err)
	}
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("cache TTL: %w", err)
	}

	s := &services{
		metrics:    metrics.NewRemoteMetrics(),
		dispatcher: events.NewEventDispatcher(logger),
		logger:     logger,
	}
	s.dispatcher.Register(events.NewLoggingObserver(logger, cfg.App.DebugMode))

	var cardStore cardlookup.CardStore
	var metaCache meta.Cache
	if cfg.Cache.Enabled {
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		db, err := storage.Open(storage.DefaultConfig(path))
		if err != nil {
			return nil, fmt.Errorf("open card cache: %w", err)
		}
		s.db = db
		s.cardStore = storage.NewCardStore(db)
		cardStore = s.cardStore
		metaCache = storage.NewMetaStore(db)
	}

	s.backend = backend.NewClient(backend.ClientOptions{
		BaseURL:  cfg.Backend.BaseURL,
		APIKey:   cfg.Backend.APIKey,
		ClientID: cfg.Backend.ClientID,
		Timeout:  backendTimeout,
		Metrics:  s.metrics,
		Logger:   logger,
	})

	api := cardlookup.NewClient(cardlookup.ClientOptions{
		BaseURL:   cfg.Cards.BaseURL,
		RateLimit: rateLimit,
		Timeout:   cardsTimeout,
		Metrics:   s.metrics,
		Logger:    logger,
	})
	options := cardlookup.DefaultServiceOptions()
	options.StaleThreshold = ttl
	if cfg.Cache.MaxSize > 0 {
		options.MemoryCacheSize = cfg.Cache.MaxSize
	}
	options.Metrics = s.metrics
	options.Logger = logger
	s.cards = cardlookup.NewService(api, cardStore, options)

	s.meta = meta.NewClient(&meta.Config{
		BaseURL:        cfg.Cards.BaseURL,
		CacheTTL:       meta.DefaultConfig().CacheTTL,
		RequestTimeout: cardsTimeout,
		RateLimit:      rateLimit,
	}, metaCache, s.metrics, logger)

	s.manager = deckstate.NewManager(s.backend, s.cards, deckstate.Options{
		Dispatcher:      s.dispatcher,
		Metrics:         s.metrics,
		Logger:          logger,
		DefaultDeckName: cfg.App.DefaultDeckName,
	})
	return s, nil
}

// Close stops background work and closes the card cache.
func (s *services) Close() error {
	if s.manager != nil {
		_ = s.manager.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// services builds the services for the loaded configuration.
func (c *cli) services() (*services, error) {
	if c.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return newServices(c.cfg, c.logger)
}
