package embedding

import (
	"fmt"

	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type factoryOptions struct {
	redis  *redis.Client
	logger *zap.Logger
}

// Option configures New.
type Option func(*factoryOptions)

// WithRedis supplies the client used by the redis cache backend.
func WithRedis(c *redis.Client) Option {
	return func(o *factoryOptions) { o.redis = c }
}

// WithLogger sets the logger for cache diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *factoryOptions) { o.logger = l }
}

// New builds the embedder selected by cfg.Provider and wraps it with the
// configured cache backend.
func New(cfg config.EmbeddingConfig, opts ...Option) (Embedder, error) {
	o := &factoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	var inner Embedder
	switch cfg.Provider {
	case "", "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case "onnx":
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	switch cfg.CacheBackend {
	case "", "memory":
		return NewCachedEmbedder(inner, NewEmbeddingCache(cfg.CacheSize)), nil
	case "redis":
		if o.redis == nil {
			_ = inner.Close()
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		return NewCachedEmbedder(inner, NewRedisCache(o.redis, cfg.Model, 0, o.logger)), nil
	case "none":
		return inner, nil
	default:
		_ = inner.Close()
		return nil, fmt.Errorf("unknown embedding cache_backend %q", cfg.CacheBackend)
	}
}
