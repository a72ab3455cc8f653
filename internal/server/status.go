package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/internal/storage"
	"github.com/hyperjump/feedsearch/internal/vector"
)

// CollectStatus gathers the point count, last run, and run database size.
// A collection that does not exist yet reports zero points. runs may be nil.
func CollectStatus(ctx context.Context, index vector.VectorIndex, runs storage.RunStore, cfg *config.Config) (*models.Status, error) {
	points, err := index.Count(ctx)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		points, err = 0, nil
	}
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	st := &models.Status{
		Collection:        cfg.Index.Collection,
		IndexBackend:      cfg.Index.Backend,
		Points:            points,
		EmbeddingProvider: cfg.Embedding.Provider,
		EmbeddingModel:    cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
	}
	if runs != nil {
		last, err := runs.ListRuns(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if len(last) > 0 {
			st.LastRun = last[0]
		}
	}
	if size, err := storage.DatabaseSize(cfg.Storage.DatabasePath); err == nil {
		st.DatabaseSizeBytes = size
	}
	return st, nil
}
