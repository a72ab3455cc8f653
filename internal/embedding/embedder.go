// Package embedding turns text into fixed-length vectors via Ollama or ONNX, with
// optional in-memory or Redis caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/feedsearch/internal/models"
)

// Embedder produces vector embeddings for text. Every vector it returns has
// exactly Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// healthProbe is embedded at startup to verify the embedder is reachable.
const healthProbe = "health check"

// HealthCheck embeds a probe text and verifies the vector length.
func HealthCheck(ctx context.Context, e Embedder) error {
	vec, err := e.Embed(ctx, healthProbe)
	if err != nil {
		return fmt.Errorf("embedder health check: %w", err)
	}
	return checkDimensions(vec, e.Dimensions())
}

func checkDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
