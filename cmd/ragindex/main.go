// Package main is the ragindex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nwestbury/ragindex/internal/chunker"
	"github.com/nwestbury/ragindex/internal/cli"
	"github.com/nwestbury/ragindex/internal/config"
	"github.com/nwestbury/ragindex/internal/embedding"
	"github.com/nwestbury/ragindex/internal/models"
	"github.com/nwestbury/ragindex/internal/processor"
	"github.com/nwestbury/ragindex/internal/search"
	"github.com/nwestbury/ragindex/internal/server"
	"github.com/nwestbury/ragindex/internal/store"
	"github.com/nwestbury/ragindex/internal/watcher"
	"github.com/nwestbury/ragindex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ragindex/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if
// that exists it is used. A missing default config file is not an
// error; built-in defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "watch":
		runWatch()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("ragindex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Engine,
		components.Processor,
		components.Store,
		&cfg.Server,
		logger,
	)

	var watchCancel context.CancelFunc
	if len(cfg.Watch.Directories) > 0 {
		watchSvc := newWatchService(cfg, components, logger, debugMode)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragindex index [flags] <file-or-directory>...")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	paths, err := collectFiles(fs.Args(), cfg.Watch.Extensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve paths: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No matching files found")
		os.Exit(1)
	}

	result := components.Processor.ProcessFiles(context.Background(), paths)
	if err := cli.WriteProcessResult(os.Stdout, result, parseFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(result.Failed) > 0 && result.ProcessedFiles == 0 {
		os.Exit(1)
	}
}

// collectFiles expands directories into their contained files, filtered
// by extension. Files named explicitly bypass the filter.
func collectFiles(args []string, extensions []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			// Let the processor report the failure per file.
			paths = append(paths, arg)
			continue
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			for _, ext := range extensions {
				if strings.EqualFold(filepath.Ext(path), ext) {
					paths = append(paths, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear
// after the query to the front of the slice so that flag.Parse() sees
// them. Go's flag package stops at the first non-flag argument.
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
	serverURL := fs.String("server", "", "server URL (empty = direct database access)")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	threshold := fs.Float64("threshold", 0, "minimum similarity (0 = config default)")
	mode := fs.String("mode", "semantic", "search mode: semantic, keyword, or hybrid")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: ragindex search [flags] <query>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		result, err := searchViaHTTP(*serverURL, queryStr, *limit, *threshold, *mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	var result *models.SearchResult
	switch *mode {
	case "keyword":
		result, err = components.Engine.SearchKeywords(ctx, queryStr, *limit)
	case "hybrid":
		result, err = components.Engine.SearchHybrid(ctx, queryStr, *limit, 0.5, 0.5)
	default:
		result, err = components.Engine.Search(ctx, queryStr, *limit, *threshold)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, limit int, threshold float64, mode string) (*models.SearchResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"limit":     limit,
		"threshold": threshold,
		"mode":      mode,
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = direct database access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var stats models.StoreStats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteStats(os.Stdout, &stats, format)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteStats(os.Stdout, stats, format)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	sync := fs.Bool("sync", true, "index existing files on startup")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		cfg.Watch.Directories = fs.Args()
	}
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("Usage: ragindex watch [flags] <directory>...")
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	watchSvc := newWatchService(cfg, components, logger, debugMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	if *sync {
		watchSvc.SyncExistingFiles()
	}
	logger.Info("Watching", zap.Strings("directories", watchSvc.Directories()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
}

// newWatchService wires the watcher callbacks into the processor and
// store: changed files are re-indexed, deleted files drop their chunks.
func newWatchService(cfg *config.Config, components *Components, logger *zap.Logger, debug bool) *watcher.Watcher {
	proc := components.Processor
	st := components.Store
	opts := []watcher.Option{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			result := proc.ProcessFile(context.Background(), path)
			for _, f := range result.Failed {
				logger.Warn("watch index file failed", zap.String("path", f.Path), zap.String("error", f.Error))
			}
		},
		func(path string) {
			n, err := st.DeleteByFile(context.Background(), path)
			if err != nil {
				logger.Warn("watch delete chunks failed", zap.String("path", path), zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("removed chunks for deleted file", zap.String("path", path), zap.Int64("chunks", n))
			}
		},
		opts...,
	)
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

// Components holds initialized services.
type Components struct {
	Store     store.Store
	Embedder  embedding.Embedder
	Generator *embedding.Generator
	Engine    *search.Engine
	Processor *processor.Processor
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var embedder embedding.Embedder
	apiKey := cfg.APIKey()
	if apiKey == "" {
		logger.Warn("no API key found, using mock embedder; set the key for real embeddings",
			zap.String("env", cfg.Embedding.APIKeyEnv))
		embedder = embedding.NewMockEmbedder(embedding.ModelDimensions(cfg.Embedding.Model))
	} else {
		embedder, err = embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding.Model)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	generator := embedding.NewGenerator(embedder, embedding.GeneratorConfig{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		MaxRetries:  cfg.Embedding.MaxRetries,
		RetryDelay:  time.Duration(cfg.Embedding.RetryDelayMs) * time.Millisecond,
		CacheSize:   cfg.Embedding.CacheSize,
	}, embedding.WithLogger(logger))

	engine := search.NewEngine(generator, st, search.Config{
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		DefaultLimit:        cfg.Search.DefaultLimit,
	})

	proc := processor.New(generator, st, processor.Config{
		Chunking: chunker.Config{
			MaxTokens: cfg.Chunking.MaxTokens,
			Overlap:   cfg.Chunking.Overlap,
		},
		MaxFileSize: cfg.Processor.MaxFileSizeBytes,
	}, processor.WithLogger(logger))

	return &Components{
		Store:     st,
		Embedder:  embedder,
		Generator: generator,
		Engine:    engine,
		Processor: proc,
	}, nil
}

// runConfig handles `config init`: write a config file with every
// default filled in, as a starting point for editing.
func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: ragindex config init [--path <file>]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	path := fs.String("path", "config.yaml", "where to write the config file")
	_ = fs.Parse(os.Args[3:])

	if err := writeDefaultConfig(*path); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

// writeDefaultConfig writes the built-in defaults to path. An existing
// file is never overwritten.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.Save(path, config.Default())
}

func printUsage() {
	fmt.Println(`ragindex - chunk, embed, and search local files

Usage:
  ragindex server [flags]             Start the HTTP server
  ragindex index [flags] <path>...    Index files or directories
  ragindex search [flags] <query>     Search indexed chunks
  ragindex stats [flags]              Show store statistics
  ragindex watch [flags] <dir>...     Watch directories and re-index changes
  ragindex config init [--path]       Write a config file with defaults
  ragindex version                    Show version
  ragindex help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ragindex/config.yaml)
  --debug            Enable debug logging

Index Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Search Flags:
  --config string      Config file path
  --server string      Server URL (empty = direct database access)
  --limit int          Number of results (0 = config default)
  --threshold float    Minimum similarity in (0,1] (0 = config default)
  --mode string        semantic, keyword, or hybrid (default: semantic)
  --output string      Output format: text or json (default: text)

Stats Flags:
  --config string    Config file path
  --server string    Server URL (empty = direct database access)
  --output string    Output format: text or json (default: text)

Watch Flags:
  --config string    Config file path
  --sync             Index existing files on startup (default: true)
  --debug            Enable debug logging

Examples:
  ragindex index ./docs
  ragindex search "error handling patterns"
  ragindex search --mode hybrid --limit 20 concurrency
  ragindex search --output json "query"   # structured JSON for other apps
  ragindex stats
  ragindex watch ./docs ./src`)
}
