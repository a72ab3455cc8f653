// Package config provides configuration loading and structs for feedsearch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Feed      FeedConfig      `yaml:"feed"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FeedConfig describes the paginated feed. Page N is fetched from BaseURL + N.
type FeedConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
	MaxPages          int           `yaml:"max_pages"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider     string        `yaml:"provider"` // ollama, onnx, mock
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Dimensions   int           `yaml:"dimensions"`
	Timeout      time.Duration `yaml:"timeout"`
	ModelPath    string        `yaml:"model_path"`
	MaxTokens    int           `yaml:"max_tokens"`
	CacheSize    int           `yaml:"cache_size"`
	CacheBackend string        `yaml:"cache_backend"` // memory, redis, none
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	Backend    string        `yaml:"backend"` // qdrant, memory
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Distance   string        `yaml:"distance"`
	Timeout    time.Duration `yaml:"timeout"`
	// SnapshotPath persists the memory backend between runs. Empty keeps it in memory only.
	SnapshotPath string `yaml:"snapshot_path"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Concurrency int           `yaml:"concurrency"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

// RedisConfig is optional. When Address is empty the run lock is in-process and
// the redis embedding cache is unavailable.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds the run history database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Index.SnapshotPath != "" {
		cfg.Index.SnapshotPath = expandPath(cfg.Index.SnapshotPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "onnx", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: ollama, onnx, mock)", c.Embedding.Provider)
	}
	switch c.Index.Backend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("unknown index backend %q (supported: qdrant, memory)", c.Index.Backend)
	}
	switch c.Embedding.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("embedding cache_backend redis requires redis.address")
		}
	default:
		return fmt.Errorf("unknown embedding cache_backend %q (supported: memory, redis, none)", c.Embedding.CacheBackend)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search default_limit %d exceeds max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
