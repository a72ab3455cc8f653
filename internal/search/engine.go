// Package search answers similarity queries against the vector index.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/hyperjump/feedsearch/internal/embedding"
	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/internal/vector"
	"go.uber.org/zap"
)

// Engine embeds query text and returns the nearest indexed documents.
type Engine struct {
	embedder embedding.Embedder
	index    vector.VectorIndex
	logger   *zap.Logger

	mu     sync.RWMutex
	limits config.SearchConfig
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine.
func NewEngine(embedder embedding.Embedder, index vector.VectorIndex, cfg config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder: embedder,
		index:    index,
		limits:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLimits replaces the default and maximum result counts.
func (e *Engine) SetLimits(cfg config.SearchConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits = cfg
}

// Limits returns the current result count limits.
func (e *Engine) Limits() config.SearchConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// Search returns up to maxResults hits for query, most similar first.
// maxResults <= 0 uses search.default_limit, and values above search.max_limit
// are capped to it before the index is queried.
func (e *Engine) Search(ctx context.Context, query string, maxResults int) (*models.SearchResponse, error) {
	return e.Query(ctx, &models.SearchQuery{Query: query, Limit: maxResults})
}

// Query validates q, then embeds the raw query text and searches the index.
// Invalid queries fail with models.ErrInvalidQuery before any network call. An
// empty index yields an empty hit list.
func (e *Engine) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	limits := e.Limits()
	if err := q.Validate(limits.DefaultLimit, limits.MaxLimit); err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	results, err := e.index.Search(ctx, vec, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]*models.SearchHit, 0, len(results))
	for i, r := range results {
		hits = append(hits, &models.SearchHit{
			ID:    r.ID,
			Title: r.Payload.Title,
			URL:   r.Payload.URL,
			Score: r.Score,
			Rank:  i + 1,
		})
	}
	resp := &models.SearchResponse{
		Query:     q.Query,
		Hits:      hits,
		QueryTime: time.Since(start).Milliseconds(),
	}
	e.logger.Debug("search",
		zap.String("query", q.Query),
		zap.Int("limit", q.Limit),
		zap.Int("hits", len(hits)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}
