// Package server provides the HTTP API for Mihari.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/mihari/internal/catalog"
	"github.com/hyperjump/mihari/internal/config"
	"github.com/hyperjump/mihari/internal/pipeline"
	"github.com/hyperjump/mihari/internal/reports"
)

// Server is the HTTP server for the Mihari API.
type Server struct {
	pipeline    *pipeline.Pipeline
	catalog     *catalog.Catalog
	reportStore *reports.Store
	config      *config.ServerConfig
	fullConfig  *config.Config
	watch       WatchService
	configPath  string
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. catalog and
// reportStore may be nil; the corresponding endpoints then return 501.
// fullConfig may be nil; when set, status includes configuration and disk usage.
func NewServer(
	pl *pipeline.Pipeline,
	cat *catalog.Catalog,
	reportStore *reports.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	fullConfig *config.Config,
) *Server {
	return &Server{
		pipeline:    pl,
		catalog:     cat,
		reportStore: reportStore,
		config:      cfg,
		fullConfig:  fullConfig,
		logger:      logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/review", s.handleReview)
	r.Post("/api/v1/review/batch", s.handleReviewBatch)
	r.Post("/api/v1/whitelist", s.handleWhitelistAdd)
	r.Get("/api/v1/whitelist", s.handleWhitelistList)
	r.Get("/api/v1/whitelist/search", s.handleWhitelistSearch)
	r.Get("/api/v1/whitelist/{id}", s.handleWhitelistGet)
	r.Delete("/api/v1/whitelist/{id}", s.handleWhitelistRemove)
	r.Post("/api/v1/feedback", s.handleFeedback)
	r.Get("/api/v1/reports", s.handleReportsList)
	r.Get("/api/v1/reports/{id}", s.handleReportsGet)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
