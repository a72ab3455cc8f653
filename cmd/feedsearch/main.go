// Package main is the feedsearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/feedsearch/internal/cli"
	"github.com/hyperjump/feedsearch/internal/config"
	"github.com/hyperjump/feedsearch/internal/embedding"
	"github.com/hyperjump/feedsearch/internal/feed"
	"github.com/hyperjump/feedsearch/internal/indexer"
	"github.com/hyperjump/feedsearch/internal/lock"
	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/internal/search"
	"github.com/hyperjump/feedsearch/internal/server"
	"github.com/hyperjump/feedsearch/internal/storage"
	"github.com/hyperjump/feedsearch/internal/vector"
	"github.com/hyperjump/feedsearch/internal/watcher"
	"github.com/hyperjump/feedsearch/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/feedsearch/config.yaml"

// loadConfig loads config from path. When path is the default and the file does
// not exist, config.yaml in the current directory is tried, then built-in defaults.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			if cwd, cwdErr := os.Getwd(); cwdErr == nil {
				fallback := filepath.Join(cwd, "config.yaml")
				if _, statErr := os.Stat(fallback); statErr == nil {
					path = fallback
				} else {
					cfg := &config.Config{}
					config.ApplyDefaults(cfg)
					if home, err := os.UserHomeDir(); err == nil {
						cfg.Storage.DatabasePath = filepath.Join(home, cfg.Storage.DatabasePath)
					}
					return cfg, "", cfg.Validate()
				}
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "runs":
		runRuns()
	case "version", "--version", "-v":
		fmt.Printf("feedsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", cfg.Debug || *debug))

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var cfgWatcher *watcher.ConfigWatcher
	if resolvedConfigPath != "" {
		engine := components.Engine
		cfgWatcher = watcher.NewConfigWatcher(resolvedConfigPath, func(next *config.Config) {
			engine.SetLimits(next.Search)
			logger.Info("search limits reloaded",
				zap.Int("default_limit", next.Search.DefaultLimit),
				zap.Int("max_limit", next.Search.MaxLimit))
		}, watcher.WithLogger(logger))
		if err := cfgWatcher.Start(context.Background()); err != nil {
			logger.Warn("config watcher disabled", zap.Error(err))
			cfgWatcher = nil
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Index,
		components.Runs,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfgWatcher != nil {
		cfgWatcher.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	clearFirst := fs.Bool("clear", false, "delete all points in the collection before ingesting")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	res, err := components.Pipeline.Run(ctx, *clearFirst)
	if res != nil {
		if werr := cli.WriteIngestResult(os.Stdout, res, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: feedsearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  feedsearch search dependency injection
  feedsearch search -limit 10 "blazor performance"
  feedsearch search -output json azure functions
  feedsearch search -server http://localhost:8080 signalr
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty searches the index directly")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	query := &models.SearchQuery{Query: buildSearchQuery(fs.Args()), Limit: *limit}
	if query.Query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	if *serverURL != "" {
		var response models.SearchResponse
		if err := postJSON(*serverURL+"/api/v1/search", query, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		writeOrExit(cli.WriteSearchHits(os.Stdout, &response, format))
		return
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.Query(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	writeOrExit(cli.WriteSearchHits(os.Stdout, response, format))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads the index directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		var status models.Status
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		writeOrExit(cli.WriteStatus(os.Stdout, &status, format))
		return
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	index, err := vector.New(cfg.Index, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer index.Close()
	runs, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		os.Exit(1)
	}
	defer runs.Close()

	status, err := server.CollectStatus(ctx, index, runs, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	writeOrExit(cli.WriteStatus(os.Stdout, status, format))
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of runs to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	runs, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		os.Exit(1)
	}
	defer runs.Close()

	list, err := runs.ListRuns(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	writeOrExit(cli.WriteRuns(os.Stdout, list, format))
}

func writeOrExit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Redis    *redis.Client
	Embedder embedding.Embedder
	Index    vector.VectorIndex
	Runs     *storage.SQLiteStore
	Engine   *search.Engine
	Pipeline *indexer.Pipeline
	closed   bool
}

// Close releases resources in reverse order of creation. The memory index
// writes its snapshot here. Safe to call more than once.
func (c *Components) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Runs != nil {
		_ = c.Runs.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// initializeComponents builds every service from cfg. The collection is ensured
// and the embedder is probed; either failing aborts startup.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	var locker lock.Locker = lock.NewLocal()
	var embOpts []embedding.Option
	embOpts = append(embOpts, embedding.WithLogger(logger))
	if cfg.Redis.Address != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		locker = lock.NewRedis(c.Redis)
		embOpts = append(embOpts, embedding.WithRedis(c.Redis))
	}

	runs, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize run history: %w", err))
	}
	c.Runs = runs

	embedder, err := embedding.New(cfg.Embedding, embOpts...)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	c.Embedder = embedder
	if err := embedding.HealthCheck(ctx, embedder); err != nil {
		return fail(fmt.Errorf("embedder health check failed: %w", err))
	}

	index, err := vector.New(cfg.Index, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize vector index: %w", err))
	}
	c.Index = index
	metric, err := vector.ParseMetric(cfg.Index.Distance)
	if err != nil {
		return fail(err)
	}
	if err := index.EnsureCollection(ctx, cfg.Embedding.Dimensions, metric); err != nil {
		return fail(fmt.Errorf("failed to ensure collection %q: %w", cfg.Index.Collection, err))
	}
	logger.Info("vector index ready",
		zap.String("backend", cfg.Index.Backend),
		zap.String("collection", cfg.Index.Collection),
		zap.Int("dimensions", cfg.Embedding.Dimensions))

	fetcher, err := feed.NewHTTPFetcher(feed.HTTPFetcherConfig{
		BaseURL:           cfg.Feed.BaseURL,
		Timeout:           cfg.Feed.Timeout,
		MaxRetries:        cfg.Feed.MaxRetries,
		RetryBackoff:      cfg.Feed.RetryBackoff,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		UserAgent:         cfg.Feed.UserAgent,
	}, feed.WithFetcherLogger(logger))
	if err != nil {
		return fail(err)
	}
	harvester := feed.NewHarvester(fetcher, feed.WithLogger(logger), feed.WithMaxPages(cfg.Feed.MaxPages))

	c.Engine = search.NewEngine(embedder, index, cfg.Search, search.WithLogger(logger))
	c.Pipeline = indexer.NewPipeline(harvester, embedder, index,
		indexer.WithLogger(logger),
		indexer.WithConcurrency(cfg.Ingest.Concurrency),
		indexer.WithLocker(locker, cfg.Ingest.LockTTL),
		indexer.WithRunStore(runs),
		indexer.WithCollection(cfg.Index.Collection),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`feedsearch - Semantic search over a paginated blog feed

Usage:
  feedsearch server [flags]           Start the HTTP server
  feedsearch ingest [flags]           Harvest the feed and index every post
  feedsearch search [flags] <query>   Search indexed posts
  feedsearch status [flags]           Show collection and run status
  feedsearch runs [flags]             List recent ingestion runs
  feedsearch version                  Show version
  feedsearch help                     Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/feedsearch/config.yaml,
                     falling back to ./config.yaml, then built-in defaults)
  --debug            Enable debug logging (server, ingest, search)
  --output string    Output format: text or json (ingest, search, status, runs)

Ingest Flags:
  --clear            Delete all points in the collection before ingesting

Search Flags:
  --limit int        Number of results (default from config search.default_limit)
  --server string    Query a running server instead of the index directly

Status Flags:
  --server string    Read status from a running server

Runs Flags:
  --limit int        Number of runs to list (default: 20)

Examples:
  feedsearch ingest
  feedsearch ingest --clear
  feedsearch search "dependency injection in .NET"
  feedsearch search --limit 10 --output json blazor
  feedsearch status
  feedsearch server --debug`)
}
