package embedding

import (
	"context"
	"testing"
)

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(768)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkCachedEmbedder_Hit(b *testing.B) {
	e := NewCachedEmbedder(NewMockEmbedder(768), NewEmbeddingCache(16))
	ctx := context.Background()
	_, _ = e.Embed(ctx, "cached text")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "cached text")
	}
}
