package vector

import (
	"fmt"
	"strings"

	"github.com/hyperjump/feedsearch/internal/config"
	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// New creates the index selected by cfg.Backend.
func New(cfg config.IndexConfig, logger *zap.Logger) (VectorIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendQdrant, "":
		return NewQdrantIndex(QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
		}, WithLogger(logger))
	case BackendMemory:
		var opts []MemoryOption
		if cfg.SnapshotPath != "" {
			opts = append(opts, WithSnapshot(cfg.SnapshotPath))
		}
		return NewMemoryIndex(opts...)
	default:
		return nil, fmt.Errorf("unknown index backend: %s (supported: qdrant, memory)", cfg.Backend)
	}
}

// ParseMetric maps a configured distance name to a Metric. Matching is
// case-insensitive and accepts "euclidean" for Euclid.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return Cosine, nil
	case "dot":
		return Dot, nil
	case "euclid", "euclidean":
		return Euclidean, nil
	default:
		return "", fmt.Errorf("unknown distance %q (supported: Cosine, Dot, Euclid)", name)
	}
}
