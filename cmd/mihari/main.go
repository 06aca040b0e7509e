// Package main is the Mihari CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mihari/internal/catalog"
	"github.com/hyperjump/mihari/internal/cli"
	"github.com/hyperjump/mihari/internal/config"
	"github.com/hyperjump/mihari/internal/decision"
	"github.com/hyperjump/mihari/internal/embedding"
	"github.com/hyperjump/mihari/internal/format"
	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/internal/pipeline"
	"github.com/hyperjump/mihari/internal/reports"
	"github.com/hyperjump/mihari/internal/server"
	"github.com/hyperjump/mihari/internal/store"
	"github.com/hyperjump/mihari/internal/vector"
	"github.com/hyperjump/mihari/internal/watcher"
	"github.com/hyperjump/mihari/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mihari/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "mihari server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
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
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "review":
		runReview()
	case "feedback":
		runFeedback()
	case "remove":
		runRemove()
	case "list":
		runList()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("mihari version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (inbox changes, review events, etc.)")
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

	pl := components.Pipeline
	exts := cfg.Watch.Extensions
	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		exts,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			result, err := pl.Review(context.Background(), path)
			if err != nil {
				logger.Warn("inbox review failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("inbox video reviewed",
				zap.String("path", path),
				zap.String("decision", string(result.Decision)),
				zap.Float64("confidence", result.Confidence),
			)
		},
		func(path string) {
			logger.Debug("inbox video removed before review", zap.String("path", path))
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Pipeline,
		components.Catalog,
		components.Reports,
		&cfg.Server,
		logger,
		cfg,
	)
	srv.SetWatch(watchSvc, resolvedConfigPath)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.StorePath != "" {
		if err := components.Store.Save(cfg.Storage.StorePath); err != nil {
			logger.Warn("feature store save failed", zap.String("path", cfg.Storage.StorePath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	videoID := fs.String("id", "", "whitelist ID (default: derived from path)")
	title := fs.String("title", "", "video title stored as metadata")
	overwrite := fs.Bool("overwrite", false, "replace an existing entry with the same ID")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mihari ingest [flags] <video-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		inputs := collectVideoInputs(path, cfg.Watch.Extensions, *title)
		summary, err := components.Pipeline.IngestApprovedVideos(ctx, inputs, *overwrite)
		if err != nil {
			fmt.Printf("Ingest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Whitelisted %d video(s) from %s (%d failed)\n", summary.Success, path, summary.Failed)
		return
	}
	input := &models.IngestInput{VideoID: *videoID, VideoPath: path}
	if *title != "" {
		input.Metadata = map[string]interface{}{"title": *title}
	}
	id, err := components.Pipeline.IngestApprovedVideo(ctx, input, *overwrite)
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Video whitelisted: %s\n", id)
}

func collectVideoInputs(dir string, extensions []string, title string) []*models.IngestInput {
	var inputs []*models.IngestInput
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !extensionAllowed(filepath.Ext(path), extensions) {
			return nil
		}
		input := &models.IngestInput{VideoPath: path}
		if title != "" {
			input.Metadata = map[string]interface{}{"title": title}
		}
		inputs = append(inputs, input)
		return nil
	})
	return inputs
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

func runReview() {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	reportPath := fs.String("report", "", "write the batch report JSON to this path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mihari review [flags] <video> [video...]")
		os.Exit(1)
	}
	outFormat, ok := parseOutputFormat(*outputFormat)
	if !ok {
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	cfg, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	ctx := context.Background()
	if fs.NArg() == 1 && *reportPath == "" {
		result, err := components.Pipeline.Review(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Review failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteReviewResult(os.Stdout, result, outFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	report, err := components.Pipeline.ReviewBatch(ctx, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batch review failed: %v\n", err)
		os.Exit(1)
	}
	// Batch runs always leave a JSON report; -report overrides the
	// configured report directory.
	dest := *reportPath
	if dest == "" && cfg.Storage.ReportDir != "" {
		dest = filepath.Join(cfg.Storage.ReportDir, pipeline.ReportFileName(time.Now()))
	}
	if dest != "" {
		if err := pipeline.WriteReportFile(report, dest); err != nil {
			fmt.Fprintf(os.Stderr, "Report write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", dest)
	}
	if err := cli.WriteBatchReport(os.Stdout, report, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runFeedback() {
	fs := flag.NewFlagSet("feedback", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	videoID := fs.String("id", "", "whitelist ID (default: derived from path)")
	title := fs.String("title", "", "video title stored as metadata")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mihari feedback [flags] <video>")
		os.Exit(1)
	}

	_, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	input := &models.IngestInput{VideoID: *videoID, VideoPath: fs.Arg(0)}
	if *title != "" {
		input.Metadata = map[string]interface{}{"title": *title}
	}
	id, err := components.Pipeline.FeedbackApproved(context.Background(), input)
	if err != nil {
		fmt.Printf("Feedback failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Video whitelisted from feedback: %s\n", id)
}

func runRemove() {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mihari remove [flags] <video-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	_, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	if err := components.Pipeline.RemoveApprovedVideo(context.Background(), id); err != nil {
		fmt.Printf("Removal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Video removed from whitelist: %s\n", id)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	outFormat, ok := parseOutputFormat(*outputFormat)
	if !ok {
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	_, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	records := components.Store.ListAll()
	if err := cli.WriteRecords(os.Stdout, records, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mihari search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: mihari search [flags] <query>")
		os.Exit(1)
	}
	outFormat, ok := parseOutputFormat(*outputFormat)
	if !ok {
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use HTTP API when server is running (avoids Bleve lock conflict).
		hits, err := searchViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteCatalogHits(os.Stdout, hits, outFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_, components, cleanup := mustInitialize(*configPath)
	defer cleanup()

	if components.Catalog == nil {
		fmt.Fprintln(os.Stderr, "Catalog not enabled")
		os.Exit(1)
	}
	hits, err := components.Catalog.Search(context.Background(), query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteCatalogHits(os.Stdout, hits, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, limit int) ([]*catalog.Hit, error) {
	u := fmt.Sprintf("%s/api/v1/whitelist/search?q=%s&limit=%d", serverURL, url.QueryEscape(query), limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Hits []*catalog.Hit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Hits, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	WhitelistVideos int    `json:"whitelist_videos"`
	IndexSlots      int    `json:"index_slots"`
	IndexKind       string `json:"index_kind"`
	Dimensions      int    `json:"dimensions"`
	ReviewRuns      *int64 `json:"review_runs,omitempty"`
	CatalogEntries  *int64 `json:"catalog_entries,omitempty"`
	DiskUsageBytes  *int64 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		_, components, cleanup := mustInitialize(*configPath)
		defer cleanup()
		stats := components.Store.Stats()
		status = statusResponse{
			WhitelistVideos: stats.Records,
			IndexSlots:      stats.IndexSlots,
			IndexKind:       stats.IndexKind,
			Dimensions:      stats.Dimensions,
		}
		if components.Reports != nil {
			if count, err := components.Reports.CountRuns(context.Background()); err == nil {
				status.ReviewRuns = &count
			}
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("whitelist_videos:  %d   # approved videos in the feature store\n", status.WhitelistVideos)
		fmt.Printf("index_slots:       %d   # vector index positions (including tombstones)\n", status.IndexSlots)
		fmt.Printf("index_kind:        %s\n", status.IndexKind)
		fmt.Printf("dimensions:        %d\n", status.Dimensions)
		if status.ReviewRuns != nil {
			fmt.Printf("review_runs:       %d   # persisted batch runs\n", *status.ReviewRuns)
		}
		if status.CatalogEntries != nil {
			fmt.Printf("catalog_entries:   %d\n", *status.CatalogEntries)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d   # store + reports + catalog on disk\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mihari watch <add|remove|list> [path]")
		fmt.Println("  mihari watch add <path>     Add inbox directory to watch")
		fmt.Println("  mihari watch remove <path>  Remove inbox directory from watch")
		fmt.Println("  mihari watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mihari watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mihari watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func parseOutputFormat(s string) (cli.OutputFormat, bool) {
	switch s {
	case "json":
		return cli.OutputJSON, true
	case "text":
		return cli.OutputText, true
	default:
		return cli.OutputText, false
	}
}

// mustInitialize loads config and components or exits with a message.
func mustInitialize(configPath string) (*config.Config, *Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	cleanup := func() {
		components.Close()
		_ = logger.Sync()
	}
	return cfg, components, cleanup
}

// Components holds initialized services.
type Components struct {
	Store    *store.FeatureStore
	Embedder embedding.Embedder
	Catalog  *catalog.Catalog
	Reports  *reports.Store
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Reports != nil {
		_ = c.Reports.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	var storeOpts []store.Option
	if cfg.Index.Kind == "ivf" {
		storeOpts = append(storeOpts, store.WithIVFParams(cfg.Index.NList, cfg.Index.NProbe))
	}
	featureStore, err := store.New(cfg.Embedding.Dimensions, vector.Kind(cfg.Index.Kind), storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize feature store: %w", err)
	}
	if cfg.Storage.StorePath != "" {
		if err := featureStore.Load(cfg.Storage.StorePath); err != nil {
			return nil, fmt.Errorf("failed to load feature store: %w", err)
		}
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		if logger != nil {
			logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
		}
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	maker, err := decision.NewMaker(cfg.Review.AutoPassThreshold, cfg.Review.AutoRejectThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize decision maker: %w", err)
	}

	var checker format.Checker
	if cfg.Review.FormatCheckOrDefault() {
		checker = format.NewProbeFileChecker()
	}

	cat, err := catalog.New(cfg.Storage.CatalogIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	reportStore, err := reports.NewStore(cfg.Storage.ReportsDBPath)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}

	plOpts := []pipeline.Option{
		pipeline.WithCatalog(cat),
		pipeline.WithReportStore(reportStore),
		pipeline.WithStorePath(cfg.Storage.StorePath),
		pipeline.WithTopK(cfg.Review.TopK),
		pipeline.WithEmbedTimeout(time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second),
	}
	if debug && logger != nil {
		plOpts = append(plOpts, pipeline.WithLogger(logger))
	}
	pl := pipeline.New(featureStore, embedder, checker, maker, plOpts...)

	return &Components{
		Store:    featureStore,
		Embedder: embedder,
		Catalog:  cat,
		Reports:  reportStore,
		Pipeline: pl,
	}, nil
}

func printUsage() {
	fmt.Println(`mihari - Short-video whitelist review service

Usage:
  mihari server [flags]             Start the HTTP server
  mihari ingest [flags] <video>     Whitelist an approved video (or a directory of them)
  mihari review [flags] <video...>  Review videos against the whitelist
  mihari feedback [flags] <video>   Whitelist a manually approved video (overwrites)
  mihari remove [flags] <id>        Remove a video from the whitelist
  mihari list [flags]               List whitelisted videos
  mihari search [flags] <query>     Search whitelist metadata
  mihari status [flags]             Show store/index status
  mihari watch <add|remove|list>    Manage watched inbox directories
  mihari version                    Show version
  mihari help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mihari/config.yaml)
  --debug            Enable debug logging (inbox changes, review events, etc.)

Ingest Flags:
  --config string    Config file path
  --id string        Whitelist ID (default: derived from path)
  --title string     Video title stored as metadata
  --overwrite        Replace an existing entry with the same ID

Review Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)
  --report string    Write the batch report JSON to this path

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int        Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  mihari server
  mihari ingest --id promo-2026 /videos/approved/promo.mp4
  mihari ingest /videos/approved
  mihari review /videos/inbox/clip.mp4
  mihari review --report report.json /videos/inbox/*.mp4
  mihari feedback --id promo-2026 /videos/inbox/clip.mp4
  mihari remove promo-2026
  mihari search "dance practice"
  mihari status --output json
  mihari watch add /videos/inbox`)
}
