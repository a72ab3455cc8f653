package embedding

import "context"

// CachedEmbedder wraps an Embedder with a Cache.
type CachedEmbedder struct {
	Embedder
	cache Cache
}

// NewCachedEmbedder returns inner wrapped with cache.
func NewCachedEmbedder(inner Embedder, cache Cache) *CachedEmbedder {
	return &CachedEmbedder{Embedder: inner, cache: cache}
}

// Embed returns the cached vector for text or computes and caches it.
// Vectors of the wrong length are never cached.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(ctx, text); ok && len(vec) == e.Dimensions() {
		return vec, nil
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if checkDimensions(vec, e.Dimensions()) == nil {
		e.cache.Set(ctx, text, vec)
	}
	return vec, nil
}
