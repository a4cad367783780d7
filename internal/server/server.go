// Package server exposes the router, conversation memory and knowledge store
// over a JSON HTTP API and a WebSocket chat endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/normanking/switchboard/internal/auth"
	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/knowledge"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8088)
	Addr string

	// AuthTokenHash is the bcrypt hash of the bearer token. Empty disables auth.
	AuthTokenHash string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// DefaultTopK and MaxTopK bound /knowledge/search.
	DefaultTopK int
	MaxTopK     int

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8088",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DefaultTopK:     3,
		MaxTopK:         50,
		MaxBodyBytes:    1 << 20,
	}
}

// ConfigFrom converts the application's server section.
func ConfigFrom(c config.ServerConfig) Config {
	cfg := DefaultConfig()
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	cfg.AuthTokenHash = c.AuthTokenHash
	return cfg
}

// ═══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ═══════════════════════════════════════════════════════════════════════════════

// Responder answers messages.
type Responder interface {
	Respond(ctx context.Context, message, userID string) (router.Result, error)
	Backends() map[string]bool
	Stats() router.Stats
}

// Searcher is the knowledge lookup behind /knowledge/search.
type Searcher interface {
	Query(ctx context.Context, text string, topK int) ([]knowledge.ChunkResult, error)
	Count() int
}

var (
	_ Responder = (*router.Router)(nil)
	_ Searcher  = (*knowledge.Store)(nil)
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER
// ═══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API.
type Server struct {
	cfg       Config
	responder Responder
	memory    memory.Store
	knowledge Searcher
	auth      *auth.Middleware
	upgrader  websocket.Upgrader
	mux       *mux.Router
	log       *logging.Logger
	startedAt time.Time

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithMemory enables the /history endpoints.
func WithMemory(m memory.Store) Option {
	return func(s *Server) { s.memory = m }
}

// WithKnowledge enables /knowledge/search.
func WithKnowledge(k Searcher) Option {
	return func(s *Server) { s.knowledge = k }
}

// WithLogger sets the server's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates the server. It fails when AuthTokenHash is set but invalid.
func New(cfg Config, responder Responder, opts ...Option) (*Server, error) {
	var verifier *auth.Verifier
	if cfg.AuthTokenHash != "" {
		v, err := auth.NewVerifier(cfg.AuthTokenHash)
		if err != nil {
			return nil, fmt.Errorf("server auth: %w", err)
		}
		verifier = v
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = cfg.DefaultTopK
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		cfg:       cfg,
		responder: responder,
		auth:      auth.NewMiddleware(verifier, nil),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log:       logging.Global().WithComponent("Server"),
		startedAt: time.Now(),
		conns:     make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.auth.RequireAuth)
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/history/{user}", s.handleGetHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{user}", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/knowledge/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s (auth %s)", ln.Addr(), map[bool]string{true: "on", false: "off"}[s.cfg.AuthTokenHash != ""])
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.closeConns()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) trackConn(c *websocket.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.conns {
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.Close()
	}
}
