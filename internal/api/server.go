// Package api serves the local REST and WebSocket API used by the deck
// builder UI.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/api/handlers"
	"github.com/ramonehamilton/commander-builder/internal/api/websocket"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
	"github.com/ramonehamilton/commander-builder/internal/events"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	port       int
	addr       string
	origins    []string
	timeout    time.Duration

	wsHub      *websocket.Hub
	wsObserver *websocket.Observer

	deps   Dependencies
	logger *zap.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		RequestTimeout: 60 * time.Second,
	}
}

// Dependencies are the services the handlers call.
type Dependencies struct {
	Manager    handlers.DeckManager
	Decks      handlers.DeckLibrary
	Cards      handlers.CardService
	Meta       handlers.MetaService
	Metrics    *metrics.RemoteMetrics
	Dispatcher *events.EventDispatcher
	Logger     *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *Config, deps Dependencies) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		router:  chi.NewRouter(),
		port:    cfg.Port,
		origins: cfg.AllowedOrigins,
		timeout: timeout,
		wsHub:   websocket.NewHub(cfg.AllowedOrigins, logger.Named("ws")),
		deps:    deps,
		logger:  logger,
	}
	s.wsObserver = websocket.NewObserver(s.wsHub)

	if deps.Manager != nil {
		s.wsHub.SetWelcome(func() (websocket.Event, bool) {
			state := deps.Manager.State()
			return websocket.Event{Type: events.TypeDeckState, Data: state}, state.DeckID != 0
		})
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.timeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(jsonContentTypeMiddleware)
}

// requestLogger logs each request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// jsonContentTypeMiddleware enforces application/json content-type for requests with bodies.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the WebSocket hub and the HTTP listener. It returns once the
// port is bound.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}
	return s.Serve(listener)
}

// Serve serves on listener in the background.
func (s *Server) Serve(listener net.Listener) error {
	s.addr = listener.Addr().String()
	go s.wsHub.Run()
	if s.deps.Dispatcher != nil {
		s.deps.Dispatcher.Register(s.wsObserver)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", zap.String("addr", s.addr))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Dispatcher != nil {
		s.deps.Dispatcher.Unregister(s.wsObserver)
	}
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the bound listen address once serving.
func (s *Server) Addr() string {
	return s.addr
}

// WebSocketHub returns the WebSocket hub.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}

// Ensure the deck state manager satisfies the handler interface.
var _ handlers.DeckManager = (*deckstate.Manager)(nil)
