// Package server hosts the HTTP and WebSocket API for the wallet UI.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parivision/bridgebet/internal/server/handler"
	"github.com/parivision/bridgebet/internal/server/middleware"
	"github.com/parivision/bridgebet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Bets    *handler.BetHandler
	Orders  *handler.OrderHandler
	Proxies *handler.ProxyHandler
	Config  *handler.ConfigHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered, wrapped in the
// logging and CORS middleware. Handlers left nil are not registered, so
// server mode can run without the wallet-dependent endpoints.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListEvents)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	mux.HandleFunc("GET /api/config", handlers.Config.GetConfig)

	mux.HandleFunc("GET /api/user-orders/{address}", handlers.Orders.ListUserOrders)

	if handlers.Proxies != nil {
		mux.HandleFunc("GET /api/proxy-wallet/{address}", handlers.Proxies.GetProxy)
		mux.HandleFunc("PUT /api/proxy-wallet/{address}", handlers.Proxies.SetProxy)
		mux.HandleFunc("DELETE /api/proxy-wallet/{address}", handlers.Proxies.ForgetProxy)
	}

	if handlers.Bets != nil {
		mux.HandleFunc("POST /api/quote", handlers.Bets.Quote)
		mux.HandleFunc("POST /api/place-order", handlers.Bets.PlaceOrder)
		mux.HandleFunc("GET /api/pending-bet", handlers.Bets.PendingBet)
		mux.HandleFunc("POST /api/resume", handlers.Bets.Resume)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		// Order placement blocks through swap, bridge and settlement; the
		// write timeout has to outlive the whole workflow.
		WriteTimeout: 15 * time.Minute,
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
