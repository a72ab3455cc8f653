package config

import "time"

// Default vector settings match nomic-embed-text served by Ollama and a local Qdrant.
const (
	DefaultFeedBaseURL = "https://trailheadtechnology.com/feed/?paged="
	DefaultDimensions  = 768
	DefaultCollection  = "blog_posts"
	DefaultDistance    = "Cosine"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Feed.BaseURL == "" {
		cfg.Feed.BaseURL = DefaultFeedBaseURL
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 30 * time.Second
	}
	if cfg.Feed.RetryBackoff == 0 {
		cfg.Feed.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = "feedsearch/1.0"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.CacheBackend == "" {
		cfg.Embedding.CacheBackend = "memory"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "qdrant"
	}
	if cfg.Index.URL == "" {
		cfg.Index.URL = "http://localhost:6333"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = DefaultCollection
	}
	if cfg.Index.Distance == "" {
		cfg.Index.Distance = DefaultDistance
	}
	if cfg.Index.Timeout == 0 {
		cfg.Index.Timeout = 30 * time.Second
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 1
	}
	if cfg.Ingest.LockTTL == 0 {
		cfg.Ingest.LockTTL = 30 * time.Minute
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/feedsearch/runs.db"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
}
