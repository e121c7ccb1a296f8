// Package server exposes the prediction market REST API and the live event
// WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/server/handler"
	"github.com/alanyoungcy/predictmarket/internal/server/middleware"
	"github.com/alanyoungcy/predictmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, admin routes are open
	// RateLimitPerMinute limits /api requests per client IP. Zero disables.
	RateLimitPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Markets   *handler.MarketHandler
	Bets      *handler.BetHandler
	Portfolio *handler.PortfolioHandler
	Chain     *handler.ChainHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// route binds one method on one path.
type route struct {
	method  string
	path    string
	handler http.HandlerFunc
	admin   bool
}

func (h Handlers) routes() []route {
	return []route{
		{http.MethodGet, "/api/health", h.Health.HealthCheck, false},
		{http.MethodGet, "/api/status", h.Status.GetStatus, false},

		{http.MethodGet, "/api/markets", h.Markets.ListMarkets, false},
		{http.MethodPost, "/api/markets", h.Markets.CreateMarket, false},
		{http.MethodGet, "/api/markets/{id}", h.Markets.GetMarket, false},
		{http.MethodPatch, "/api/markets/{id}", h.Markets.UpdateMarket, true},
		{http.MethodGet, "/api/markets/{id}/bets", h.Markets.ListMarketBets, false},
		{http.MethodGet, "/api/markets/{id}/chain", h.Chain.MarketState, false},

		{http.MethodGet, "/api/bets", h.Bets.ListBets, false},
		{http.MethodPost, "/api/bets", h.Bets.PlaceBet, false},
		{http.MethodPatch, "/api/bets/{id}/settle", h.Bets.SettleBet, true},

		{http.MethodGet, "/api/portfolio/stats", h.Portfolio.GetStats, false},

		{http.MethodPost, "/api/verify-transaction", h.Chain.VerifyTransaction, false},
		{http.MethodGet, "/api/network-status", h.Chain.NetworkStatus, false},
		{http.MethodPost, "/api/chain/transactions", h.Chain.BuildTransaction, false},
	}
}

// NewServer creates a Server with every route registered. limiter may be
// nil when rate limiting is disabled; wsHub may be nil to disable /ws.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))

	var h http.Handler = NewRouter(cfg, handlers, wsHub, limiter, logger)
	h = middleware.Recover(logger)(h)
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
		logger:     logger,
	}
}

// NewRouter builds the route table without the outer logging and CORS
// layers. Requests with a method a path does not support get a JSON 405
// listing the allowed methods; unknown /api paths get a JSON 404.
func NewRouter(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Auth(cfg.APIKey, logger)

	allowed := make(map[string][]string)
	var paths []string
	for _, rt := range handlers.routes() {
		var h http.Handler = rt.handler
		if rt.admin {
			h = auth(h)
		}
		mux.Handle(rt.method+" "+rt.path, h)

		if _, seen := allowed[rt.path]; !seen {
			paths = append(paths, rt.path)
		}
		allowed[rt.path] = append(allowed[rt.path], rt.method)
	}
	for _, p := range paths {
		mux.Handle(p, methodNotAllowed(allowed[p]))
	}

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "route not found")
	})

	var api http.Handler = mux
	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		api = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(mux)
	}

	if wsHub == nil {
		return api
	}
	root := http.NewServeMux()
	root.HandleFunc("GET /ws", wsHub.HandleWS)
	root.Handle("/", api)
	return root
}

func methodNotAllowed(methods []string) http.Handler {
	methods = append([]string(nil), methods...)
	for _, m := range methods {
		if m == http.MethodGet {
			methods = append(methods, http.MethodHead)
			break
		}
	}
	sort.Strings(methods)
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
