package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/enstso/JuriRH-Assistant/internal/config"
	"github.com/enstso/JuriRH-Assistant/internal/embedder"
	"github.com/enstso/JuriRH-Assistant/internal/evaluation"
	"github.com/enstso/JuriRH-Assistant/internal/httpapi"
	"github.com/enstso/JuriRH-Assistant/internal/indexer"
	"github.com/enstso/JuriRH-Assistant/internal/loader"
	"github.com/enstso/JuriRH-Assistant/internal/logging"
	"github.com/enstso/JuriRH-Assistant/internal/mcp"
	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/internal/service"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

const (
	metaConfig = "config"
	metaLogger = "logger"
)

// setupRuntime loads the configuration and installs the logger. Logs always
// go to stderr; stdout carries command output and the MCP protocol.
func setupRuntime(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.App.Metadata = map[string]any{metaConfig: cfg, metaLogger: logger}
	return nil
}

func runtimeOf(c *cli.Context) (*config.Config, *slog.Logger) {
	cfg, _ := c.App.Metadata[metaConfig].(*config.Config)
	logger, _ := c.App.Metadata[metaLogger].(*slog.Logger)
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return cfg, logger
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func ingestCommand(c *cli.Context) error {
	cfg, logger := runtimeOf(c)
	ctx, stop := signalContext(c)
	defer stop()

	inputDir := firstNonEmpty(c.String("input_dir"), cfg.Paths.CorpusDir)
	outDir := firstNonEmpty(c.String("out_dir"), cfg.Paths.IndexDir)

	docs, err := loader.LoadDirectory(inputDir)
	if err != nil {
		return err
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return err
	}
	defer func() {
		_ = emb.Close()
	}()

	opts := []indexer.Option{indexer.WithLogger(logger)}
	if cfg.Embeddings.Workers > 0 {
		opts = append(opts, indexer.WithWorkers(cfg.Embeddings.Workers))
	}
	builder, err := indexer.New(emb, opts...)
	if err != nil {
		return err
	}
	defer builder.Release()

	bcfg := cfg.IndexerConfig()
	bcfg.SourceDir = inputDir
	stats, err := builder.Build(ctx, docs, outDir, bcfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Indexed %d documents into %d chunks (dim %d) at %s in %s\n",
		stats.Documents, stats.Chunks, stats.Dimension, stats.OutDir, stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.App.Writer, "Build ID: %s\n", stats.BuildID)
	return nil
}

func searchCommand(c *cli.Context) error {
	cfg, logger := runtimeOf(c)
	ctx, stop := signalContext(c)
	defer stop()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	req := cfg.SearchRequest(query)
	req.Filters = filters
	if c.IsSet("top_k") {
		req.TopKFinal = c.Int("top_k")
	}
	if c.IsSet("alpha") {
		req.Alpha = c.Float64("alpha")
	}

	r, closeFn, err := openRetriever(ctx, cfg, c.String("index_dir"), logger)
	if err != nil {
		return err
	}
	defer closeFn()

	results, err := r.Search(ctx, req)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(c, results)
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, logger := runtimeOf(c)
	ctx, stop := signalContext(c)
	defer stop()

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	if cfg.Server.WatchIndex {
		stopWatch, err := svc.Watch(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = stopWatch()
		}()
	}

	addr := firstNonEmpty(c.String("addr"), cfg.HTTPAddr())
	router := httpapi.NewRouter(svc, cfg.Server.GinMode, logger)
	return httpapi.Run(ctx, addr, router, logger)
}

func mcpCommand(c *cli.Context) error {
	cfg, logger := runtimeOf(c)
	ctx, stop := signalContext(c)
	defer stop()

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	srv, err := mcp.NewServer(svc, logger)
	if err != nil {
		return err
	}

	logger.Info("MCP server ready, listening on stdio", "version", version)
	return srv.Serve(ctx)
}

func evalCommand(c *cli.Context) error {
	cfg, logger := runtimeOf(c)
	ctx, stop := signalContext(c)
	defer stop()

	examples, err := evaluation.LoadDataset(c.String("dataset"))
	if err != nil {
		return err
	}

	r, closeFn, err := openRetriever(ctx, cfg, c.String("index_dir"), logger)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := evaluation.Run(ctx, r, examples, c.Int("k"), cfg.SearchRequest(""))
	if err != nil {
		return err
	}
	return report.Write(c.App.Writer)
}

func versionCommand(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "JuriRH Assistant\n")
	fmt.Fprintf(c.App.Writer, "Version: %s\n", version)
	fmt.Fprintf(c.App.Writer, "Build Time: %s\n", buildTime)
	fmt.Fprintf(c.App.Writer, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(c.App.Writer, "SQLite Driver: %s\n", storage.DriverName)
	return nil
}

// newService creates the long-running service and loads the configured
// index. A missing index is not fatal: the service reports not ready until
// one is built or published.
func newService(cfg *config.Config, logger *slog.Logger) (*service.Service, error) {
	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, err
	}

	svc, err := service.New(cfg, emb, logger)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	if err := svc.Load(context.Background()); err != nil {
		logger.Warn("index not loaded, serving without one", "index_dir", cfg.Paths.IndexDir, "err", err)
	}
	return svc, nil
}

func openRetriever(ctx context.Context, cfg *config.Config, indexDir string, logger *slog.Logger) (*retriever.Retriever, func(), error) {
	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, nil, err
	}

	r, err := retriever.Load(ctx, firstNonEmpty(indexDir, cfg.Paths.IndexDir), emb,
		retriever.WithBM25Params(cfg.BM25Params()),
		retriever.WithLogger(logger),
	)
	if err != nil {
		_ = emb.Close()
		return nil, nil, err
	}
	return r, func() { _ = emb.Close() }, nil
}

// parseFilters turns key=value pairs into an equality filter
func parseFilters(pairs []string) (types.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(types.Filter, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = strings.TrimSpace(value)
	}
	return filters, nil
}

func printResults(c *cli.Context, results []types.RetrievedChunk) {
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(c.App.Writer, "%d. [%.4f] %s (%s)\n", i+1, r.Score, r.DocID, r.ChunkID)
		fmt.Fprintf(c.App.Writer, "   %s\n", snippet(r.Text, 200))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
