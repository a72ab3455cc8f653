package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/hyperjump/feedsearch/internal/models"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"dependency injection", "-limit", "5"},
			expected: []string{"-limit", "5", "dependency injection"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "dependency injection"},
			expected: []string{"-limit", "5", "dependency injection"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"dependency injection"},
			expected: []string{"dependency injection"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-limit", "5"},
			expected: []string{"-limit", "5", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"blazor"}, "blazor"},
		{"multiple words", []string{"blazor", "components"}, "blazor components"},
		{"single quoted phrase", []string{"blazor components"}, "blazor components"},
		{"three words", []string{"azure", "functions", "scaling"}, "azure functions scaling"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
		{"one space", []string{" "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
embedding:
  provider: mock
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  provider: mock
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Index.Collection != config.DefaultCollection || cfg.Embedding.Dimensions != config.DefaultDimensions {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path %q should be absolute", cfg.Storage.DatabasePath)
	}
}

// feedServer serves n posts, two per page, and 404 past the last page.
func feedServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("paged"))
		if err != nil || page < 1 || (page-1)*2 >= n {
			http.NotFound(w, r)
			return
		}
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel>`)
		for i := (page - 1) * 2; i < page*2 && i < n; i++ {
			fmt.Fprintf(&b, `<item><title>Post %d</title><link>https://example.com/%d</link><description>body %d</description></item>`, i+1, i+1, i+1)
		}
		b.WriteString(`</channel></rss>`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Feed.BaseURL = feedURL + "/feed/?paged="
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 16
	cfg.Index.Backend = "memory"
	cfg.Index.SnapshotPath = filepath.Join(dir, "index.bin")
	cfg.Storage.DatabasePath = filepath.Join(dir, "runs.db")
	return cfg
}

func TestInitializeComponents_IngestAndSearch(t *testing.T) {
	cfg := testConfig(t, feedServer(t, 5).URL)
	ctx := context.Background()

	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	res, err := c.Pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 5 || res.Total != 5 || res.Pages != 3 {
		t.Errorf("result = %+v, want 5/5 over 3 pages", res)
	}
	c.Close()

	// A second process sees the snapshot written on Close.
	c2, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents (reopen): %v", err)
	}
	defer c2.Close()
	resp, err := c2.Engine.Query(ctx, &models.SearchQuery{Query: "Post 4", Limit: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(resp.Hits))
	}
	runs, err := c2.Runs.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunStatusFinished {
		t.Errorf("runs = %+v", runs)
	}
}

func TestInitializeComponents_DimensionMismatchIsFatal(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	if err := c.Index.Upsert(ctx, &models.IndexPoint{ID: "x", Vector: make([]float32, 16)}); err != nil {
		t.Fatal(err)
	}
	c.Close()

	cfg.Embedding.Dimensions = 8
	if _, err := initializeComponents(ctx, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected startup to fail when the collection has other dimensions")
	}
}
