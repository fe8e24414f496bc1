// Package server exposes one HTTP endpoint per lifecycle operation plus a
// WebSocket stream of bus events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/server/handler"
	"github.com/hypelabs/hyperd/internal/server/middleware"
	"github.com/hypelabs/hyperd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// APIKey guards mutating endpoints; reads and the WebSocket stream are
	// always public. Empty disables the guard.
	APIKey string

	// RateLimit requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Simple  *handler.SimpleHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, optional rate limiting) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check. GET routes are never behind the API key guard.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Protocol singleton.
	mux.HandleFunc("POST /api/global", handlers.Markets.InitializeGlobal)
	mux.HandleFunc("GET /api/global", handlers.Markets.GetGlobal)

	// Bonding-curve markets.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/quote", handlers.Markets.QuoteTrade)
	mux.HandleFunc("POST /api/markets/{id}/trade", handlers.Markets.Trade)
	mux.HandleFunc("POST /api/markets/{id}/bond", handlers.Markets.Bond)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Markets.Redeem)
	mux.HandleFunc("POST /api/markets/{id}/harvest", handlers.Markets.Harvest)
	mux.HandleFunc("GET /api/markets/{id}/resolution", handlers.Markets.GetResolution)
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Markets.ListTrades)

	// Simple constant-product markets.
	mux.HandleFunc("POST /api/simple", handlers.Simple.Create)
	mux.HandleFunc("GET /api/simple", handlers.Simple.ListMarkets)
	mux.HandleFunc("GET /api/simple/{id}", handlers.Simple.GetMarket)
	mux.HandleFunc("POST /api/simple/{id}/buy", handlers.Simple.Buy)
	mux.HandleFunc("POST /api/simple/{id}/sell", handlers.Simple.Sell)
	mux.HandleFunc("POST /api/simple/{id}/resolve", handlers.Simple.Resolve)
	mux.HandleFunc("POST /api/simple/{id}/claim", handlers.Simple.Claim)
	mux.HandleFunc("GET /api/simple/{id}/positions/{user}", handlers.Simple.GetPosition)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
