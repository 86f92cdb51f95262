package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/enstso/JuriRH-Assistant/internal/config"
	"github.com/enstso/JuriRH-Assistant/internal/embedder"
	"github.com/enstso/JuriRH-Assistant/internal/indexer"
	"github.com/enstso/JuriRH-Assistant/internal/loader"
	"github.com/enstso/JuriRH-Assistant/internal/logging"
	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// ErrNotReady is returned by Search before any index has been loaded
var ErrNotReady = errors.New("index not loaded")

// reloadDebounce groups the filesystem events of one index swap
const reloadDebounce = 500 * time.Millisecond

// Status describes the index currently served
type Status struct {
	Ready         bool      `json:"ready"`
	Building      bool      `json:"building"`
	IndexDir      string    `json:"index_dir"`
	BuildID       string    `json:"build_id,omitempty"`
	Chunks        int       `json:"chunks"`
	Vectors       int       `json:"vectors"`
	DatabaseBytes int64     `json:"database_bytes,omitempty"`
	Dimension     int       `json:"dimension,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	SourceDir     string    `json:"source_dir,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	LoadedAt      time.Time `json:"loaded_at,omitzero"`
}

type handle struct {
	retriever *retriever.Retriever
	loadedAt  time.Time
}

// Service owns the embedder, the index builder and the retriever currently
// being served. It is created once at startup and shared by the HTTP and MCP
// layers. Searches never block on reloads: a new retriever is fully loaded
// before it replaces the current one.
type Service struct {
	cfg      *config.Config
	embedder embedder.Embedder
	builder  *indexer.Builder
	logger   *slog.Logger

	current  atomic.Pointer[handle]
	reloadMu sync.Mutex
}

// New creates a Service. No index is loaded until Load, Reload or Rebuild.
func New(cfg *config.Config, emb embedder.Embedder, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", embedder.ErrNoProviderEnabled)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []indexer.Option{indexer.WithLogger(logger)}
	if cfg.Embeddings.Workers > 0 {
		opts = append(opts, indexer.WithWorkers(cfg.Embeddings.Workers))
	}
	builder, err := indexer.New(emb, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		embedder: emb,
		builder:  builder,
		logger:   logging.Component(logger, "service"),
	}, nil
}

// Config returns the service configuration
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Load loads the configured index
func (s *Service) Load(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Reload loads the configured index and publishes it. On failure the
// previously served index, if any, stays in place.
func (s *Service) Reload(ctx context.Context) (*Status, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	dir := s.cfg.Paths.IndexDir
	r, err := retriever.Load(ctx, dir, s.embedder,
		retriever.WithBM25Params(s.cfg.BM25Params()),
		retriever.WithLogger(s.logger),
	)
	if err != nil {
		logging.LogReload(ctx, s.logger, dir, "", err)
		return nil, err
	}

	s.current.Store(&handle{retriever: r, loadedAt: time.Now().UTC()})
	logging.LogReload(ctx, s.logger, dir, r.Manifest().BuildID, nil)

	st := s.Status()
	return &st, nil
}

// Search runs req against the current index
func (s *Service) Search(ctx context.Context, req retriever.SearchRequest) ([]types.RetrievedChunk, error) {
	h := s.current.Load()
	if h == nil {
		return nil, ErrNotReady
	}

	start := time.Now()
	results, err := h.retriever.Search(ctx, req)
	logging.LogSearch(ctx, s.logger, req.Query, len(results), time.Since(start), err)
	return results, err
}

// DefaultRequest returns a request for query with the configured defaults
func (s *Service) DefaultRequest(query string) retriever.SearchRequest {
	return s.cfg.SearchRequest(query)
}

// Rebuild loads corpusDir (the configured corpus when empty), builds a new
// index over it, publishes it in the configured index directory and serves it.
func (s *Service) Rebuild(ctx context.Context, corpusDir string) (*indexer.Statistics, error) {
	if corpusDir == "" {
		corpusDir = s.cfg.Paths.CorpusDir
	}

	docs, err := loader.LoadDirectory(corpusDir)
	if err != nil {
		return nil, err
	}

	bcfg := s.cfg.IndexerConfig()
	bcfg.SourceDir = corpusDir
	stats, err := s.builder.Build(ctx, docs, s.cfg.Paths.IndexDir, bcfg)
	if err != nil {
		return nil, err
	}

	if _, err := s.Reload(ctx); err != nil {
		return stats, fmt.Errorf("index built but not loaded: %w", err)
	}
	return stats, nil
}

// Status reports on the index currently served
func (s *Service) Status() Status {
	st := Status{
		IndexDir: s.cfg.Paths.IndexDir,
		Building: s.builder.Building(),
	}

	h := s.current.Load()
	if h == nil {
		return st
	}

	m := h.retriever.Manifest()
	st.Ready = true
	st.BuildID = m.BuildID
	st.Chunks = h.retriever.Len()
	stats := h.retriever.Stats()
	st.Vectors = stats.Vectors
	st.DatabaseBytes = stats.DatabaseBytes
	st.Dimension = m.Dimension
	st.Provider = m.Provider
	st.Model = m.Model
	st.SourceDir = m.SourceDir
	st.CreatedAt = m.CreatedAt
	st.LoadedAt = h.loadedAt
	return st
}

// Watch reloads the index whenever a new one is published in the configured
// index directory, for instance by a separate ingest process. It returns once
// the watcher is registered; the returned function stops watching.
func (s *Service) Watch(ctx context.Context) (func() error, error) {
	target := filepath.Clean(s.cfg.Paths.IndexDir)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(parent); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", parent, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watchLoop(ctx, w, target)
	}()

	s.logger.Info("watching index directory", "index_dir", target)
	return func() error {
		cancel()
		<-done
		return w.Close()
	}, nil
}

func (s *Service) watchLoop(ctx context.Context, w *fsnotify.Watcher, target string) {
	fire := make(chan struct{}, 1)
	timer := time.AfterFunc(time.Hour, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if isIndexEvent(ev, target) {
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("index watcher error", "error", err)

		case <-fire:
			if s.isCurrent(ctx) {
				continue
			}
			_, _ = s.Reload(ctx)
		}
	}
}

// isCurrent reports whether the published index is the one already served.
func (s *Service) isCurrent(ctx context.Context) bool {
	h := s.current.Load()
	if h == nil {
		return false
	}
	m, err := storage.ReadManifest(ctx, s.cfg.Paths.IndexDir)
	if err != nil {
		return false
	}
	return m.BuildID == h.retriever.Manifest().BuildID
}

// isIndexEvent reports whether ev publishes a directory at target.
// Index swaps end with staging being renamed to target, which watchers of the
// parent directory see as a Create.
func isIndexEvent(ev fsnotify.Event, target string) bool {
	return filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Create)
}

// Close releases the builder and the embedder
func (s *Service) Close() error {
	s.builder.Release()
	return s.embedder.Close()
}
