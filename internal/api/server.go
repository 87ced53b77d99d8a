// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/alert"
	apihandler "github.com/newthinker/tradecost/internal/api/handler/api"
	"github.com/newthinker/tradecost/internal/api/job"
	"github.com/newthinker/tradecost/internal/api/middleware"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/metrics"
	"github.com/newthinker/tradecost/internal/notifier"
	"github.com/newthinker/tradecost/internal/pipeline"
	"github.com/newthinker/tradecost/internal/storage"
	"github.com/newthinker/tradecost/internal/storage/archive"
)

// Server represents the HTTP server for tradecost
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string // empty disables authentication
	MetricsPath string // empty disables the scrape endpoint
}

// Dependencies are the services behind the API. Archive, Trades and Metrics
// are optional; their routes are only registered when set. Notifier and Alerts may be nil.
type Dependencies struct {
	Engine   *cost.Engine
	Pipeline pipeline.Config
	Archive  archive.Storage
	Trades   storage.TradeStore
	Metrics  *metrics.Registry
	Notifier *notifier.Registry
	Alerts   *alert.Evaluator
	Jobs     *job.Store
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "cost engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, time.Hour)
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	s.handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, deps.Metrics.Handler())
	}

	costHandler := apihandler.NewCostHandler(deps.Engine)
	protect("POST /api/v1/cost", costHandler.Evaluate)

	heatmapHandler := apihandler.NewHeatmapHandler(deps.Engine, deps.Pipeline, deps.Archive, deps.Metrics, deps.Jobs, s.logger).
		WithNotifier(deps.Notifier).
		WithAlerts(deps.Alerts)
	protect("POST /api/v1/heatmap", heatmapHandler.Create)
	protect("GET /api/v1/jobs", heatmapHandler.ListJobs)
	protect("GET /api/v1/jobs/{id}", heatmapHandler.GetJob)

	if deps.Archive != nil {
		reportsHandler := apihandler.NewReportsHandler(deps.Archive)
		protect("GET /api/v1/reports", reportsHandler.List)
		protect("GET /api/v1/reports/{key...}", reportsHandler.Get)
	}

	if deps.Trades != nil {
		tradesHandler := apihandler.NewTradesHandler(deps.Trades, deps.Metrics)
		protect("GET /api/v1/trades", tradesHandler.List)
		protect("POST /api/v1/trades", tradesHandler.Import)
		protect("GET /api/v1/symbols", tradesHandler.Symbols)
	}
}

// Handler returns the server's root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
