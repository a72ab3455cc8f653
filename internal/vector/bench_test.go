package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/feedsearch/internal/models"
)

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const dims, n = 768, 1000
	idx, _ := NewMemoryIndex()
	ctx := context.Background()
	_ = idx.EnsureCollection(ctx, dims, Cosine)
	for i := 0; i < n; i++ {
		vec := make([]float32, dims)
		vec[0] = float32(i) / n
		vec[i%dims] += 1
		_ = idx.Upsert(ctx, &models.IndexPoint{ID: fmt.Sprintf("p%d", i), Vector: vec})
	}
	query := make([]float32, dims)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	x := make([]float32, 768)
	y := make([]float32, 768)
	for i := range x {
		x[i] = float32(i%7) / 7
		y[i] = float32(i%5) / 5
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CosineSimilarity(x, y)
	}
}
