// Package server provides the HTTP API for feedsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/internal/search"
	"github.com/hyperjump/feedsearch/internal/storage"
	"github.com/hyperjump/feedsearch/internal/vector"
	"go.uber.org/zap"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context, clearFirst bool) (*models.IngestResult, error)
}

// Server is the HTTP server for the feedsearch API.
type Server struct {
	engine   *search.Engine
	ingester Ingester
	index    vector.VectorIndex
	runs     storage.RunStore
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	// ingesting is set while a background run started by this server is active.
	ingesting atomic.Bool
	inflight  sync.WaitGroup
	// background is the context ingestion runs inherit; cancelled by Stop.
	background context.Context
	cancel     context.CancelFunc
}

// NewServer creates a server with the given dependencies. runs may be nil.
func NewServer(
	engine *search.Engine,
	ingester Ingester,
	index vector.VectorIndex,
	runs storage.RunStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine:     engine,
		ingester:   ingester,
		index:      index,
		runs:       runs,
		config:     cfg,
		logger:     logger,
		background: ctx,
		cancel:     cancel,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/ingest", s.handleIngest)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server, cancels any background ingestion and
// waits for it to record its outcome, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background ingestion did not finish before shutdown deadline")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
