package embedding

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/hyperjump/feedsearch/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always gets
// the same unit-length vector.
type MockEmbedder struct {
	dimensions int
	failOn     func(text string) error
	calls      atomic.Int64
}

// MockOption configures a MockEmbedder.
type MockOption func(*MockEmbedder)

// WithFailure makes Embed return the error fn reports for a text, if any.
func WithFailure(fn func(text string) error) MockOption {
	return func(e *MockEmbedder) { e.failOn = fn }
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int, opts ...MockOption) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	e := &MockEmbedder{dimensions: dimensions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.failOn != nil {
		if err := e.failOn(text); err != nil {
			return nil, err
		}
	}
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Calls returns how many times Embed was invoked.
func (e *MockEmbedder) Calls() int64 { return e.calls.Load() }

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
