// Package main is the Ruiji CLI entry point.
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
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/indexer"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/notify"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/vault"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used, so that "ruiji serve" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
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
	case "serve":
		runServe()
	case "related":
		runRelated()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file events, indexing, queries)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
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

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	mgr := components.Manager
	if err := mgr.Bootstrap(context.Background()); err != nil {
		logger.Fatal("Failed to prepare vector collection", zap.Error(err))
	}

	watchOpts := []vault.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, vault.WithLogger(logger))
	}
	watch := vault.NewWatcher(
		components.Vault,
		func(path string) {
			mgr.HandleEvent(context.Background(), models.Event{Kind: models.EventModify, Path: path})
		},
		func(path string) {
			mgr.HandleEvent(context.Background(), models.Event{Kind: models.EventDelete, Path: path})
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watch.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}

	// Reconcile documents changed while the engine was not running.
	go func() {
		report, err := mgr.ReindexAll(context.Background(), indexer.ReindexOptions{})
		if err != nil {
			logger.Warn("startup sync failed", zap.Error(err))
			return
		}
		logger.Info("startup sync complete",
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Int("pruned", report.Pruned),
			zap.Duration("elapsed", report.Elapsed))
	}()

	srv := server.NewServer(mgr, components.Catalog, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watch.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so "ruiji related a.md
// -limit 3" would otherwise leave -limit unparsed.
func argsReorder(args []string) []string {
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

func parseOutputFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func printRelatedUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji related [flags] <path>\n\n")
	fmt.Fprintf(fs.Output(), "Path is the document's vault-relative path, e.g. notes/apple.md.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ruiji related notes/apple.md
  ruiji related notes/apple.md -limit 10
  ruiji related notes/apple.md -min-score -1   # no similarity threshold
  ruiji related notes/apple.md -output json    # parseable output
`)
}

func runRelated() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("related", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run against local config directly)")
	limit := fs.Int("limit", 0, "maximum results (0 = configured default)")
	minScore := fs.Float64("min-score", 0, "minimum similarity score (0 = configured default, negative = no threshold)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printRelatedUsage(fs) }
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		printRelatedUsage(fs)
		os.Exit(1)
	}
	path := fs.Arg(0)
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		query := &models.RelatedQuery{Path: path, Limit: *limit, MinScore: *minScore}
		response, err := relatedViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Related failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteRelated(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
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

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Manager.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare vector collection: %v\n", err)
		os.Exit(1)
	}
	start := time.Now()
	notes, err := components.Manager.Related(ctx, path, indexer.QueryOptions{Limit: *limit, MinScore: *minScore})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Related failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.RelatedResponse{
		Path:      path,
		Results:   notes,
		Total:     len(notes),
		QueryTime: time.Since(start).Milliseconds(),
	}
	if err := cli.WriteRelated(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func relatedViaHTTP(serverURL string, query *models.RelatedQuery) (*models.RelatedResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/related", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RelatedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndex() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: ruiji index [flags] <path>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	if err := components.Manager.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare vector collection: %v\n", err)
		os.Exit(1)
	}
	if err := components.Manager.IndexPath(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document indexed: %s\n", path)
}

func runDelete() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: ruiji delete [flags] <path>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	if err := components.Manager.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare vector collection: %v\n", err)
		os.Exit(1)
	}
	if err := components.Manager.DeleteDocument(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", path)
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-embed every document, even unchanged ones")
	workers := fs.Int("workers", 0, "concurrent workers (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	if err := components.Manager.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare vector collection: %v\n", err)
		os.Exit(1)
	}
	report, err := components.Manager.ReindexAll(ctx, indexer.ReindexOptions{Force: *force, Workers: *workers})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run against local config directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var status *models.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := mustInitialize(*configPath)
		defer components.Close()
		defer logger.Sync()

		ctx := context.Background()
		counts, err := components.Catalog.CountByStatus(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		documents := make(map[string]int, len(counts))
		for s, n := range counts {
			documents[string(s)] = n
		}
		status = &models.StatusResponse{
			Vault:      components.Config.Vault.Dir,
			Collection: components.Config.Store.Collection,
			Model:      components.Config.Embedding.Model,
			Dimensions: components.Config.Embedding.Dimensions,
			Reindexing: components.Manager.Reindexing(),
			Documents:  documents,
		}
		if size, err := components.Catalog.SizeBytes(); err == nil {
			status.CatalogBytes = size
		}
	}

	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*models.StatusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Vault    *vault.Vault
	Embedder embedding.Embedder
	Store    vector.Store
	Catalog  *catalog.Catalog
	Manager  *indexer.Manager
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if cfg.Vault.Dir == "" {
		return nil, fmt.Errorf("vault.dir is not configured")
	}
	v, err := vault.New(cfg.Vault.Dir, cfg.Vault.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	var embedder embedding.Embedder = embedding.NewClient(cfg.Embedding.Host, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCached(embedder, cfg.Embedding.CacheSize)
	}

	store := vector.NewClient(cfg.Store.Host)

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	opts := []indexer.Option{indexer.WithNotifier(notify.NewLog(logger))}
	if debug && logger != nil {
		opts = append(opts, indexer.WithLogger(logger))
	}
	mgr := indexer.NewManager(v, embedder, store, cat, cfg, opts...)

	return &Components{
		Config:   cfg,
		Vault:    v,
		Embedder: embedder,
		Store:    store,
		Catalog:  cat,
		Manager:  mgr,
	}, nil
}

// mustInitialize loads config, builds a logger, and initializes components,
// exiting the process on any failure. For one-shot subcommands.
func mustInitialize(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func printUsage() {
	fmt.Println(`ruiji - Incremental semantic index for a local document vault

Usage:
  ruiji serve [flags]             Watch the vault and serve the HTTP API
  ruiji related [flags] <path>    Find documents similar to the one at path
  ruiji index [flags] <path>      Index a single document
  ruiji delete [flags] <path>     Remove a document from the index
  ruiji reindex [flags]           Reindex the whole vault
  ruiji status [flags]            Show index status
  ruiji version                   Show version
  ruiji help                      Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging (file events, indexing, queries)

Related Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run directly.
  --limit int        Maximum results (0 = configured default)
  --min-score float  Minimum similarity score (0 = configured default, negative = no threshold)
  --output string    Output format: text or json (default: text)

Reindex Flags:
  --config string    Config file path
  --force            Re-embed every document, even unchanged ones
  --workers int      Concurrent workers (0 = configured default)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run directly.
  --output string    Output format: text or json (default: text)

Examples:
  ruiji serve
  ruiji related notes/apple.md
  ruiji related notes/apple.md -limit 10 -output json
  ruiji index notes/new-idea.md
  ruiji delete notes/old-idea.md
  ruiji reindex -force
  ruiji status -output json`)
}
