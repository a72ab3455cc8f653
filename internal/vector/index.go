// Package vector provides the vector index client: a Qdrant REST client and an
// in-memory index with the same semantics.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/feedsearch/internal/models"
)

// Metric is the distance function a collection is created with.
type Metric string

const (
	Cosine    Metric = "Cosine"
	Dot       Metric = "Dot"
	Euclidean Metric = "Euclid"
)

// ErrCollectionNotFound is returned by point operations before EnsureCollection.
var ErrCollectionNotFound = errors.New("collection not found")

// VectorIndex is a collection-scoped similarity index.
type VectorIndex interface {
	// EnsureCollection creates the collection. An existing collection is not an error.
	EnsureCollection(ctx context.Context, dimensions int, metric Metric) error
	// DeleteAll removes every point, keeping the collection.
	DeleteAll(ctx context.Context) error
	// Upsert inserts or replaces a point by ID.
	Upsert(ctx context.Context, point *models.IndexPoint) error
	// Search returns at most limit hits by decreasing similarity, payload only.
	// An empty collection yields an empty slice.
	Search(ctx context.Context, vector []float32, limit int) ([]*Hit, error)
	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Hit is a single search result. Vectors are never returned.
type Hit struct {
	ID      string
	Score   float64
	Payload models.Payload
}
