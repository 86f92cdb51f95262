package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/enstso/JuriRH-Assistant/internal/chunker"
	"github.com/enstso/JuriRH-Assistant/internal/embedder"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/internal/tokenizer"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

var (
	// ErrBuildInProgress is returned when a build is requested while another one runs
	ErrBuildInProgress = errors.New("index build already in progress")
	// ErrInvalidDocuments is returned for documents without IDs or with duplicate IDs
	ErrInvalidDocuments = errors.New("invalid documents")
	// ErrEmbeddingFailed wraps embedder failures during a build
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Builder runs the offline pipeline: chunk -> tokenize -> embed -> persist
type Builder struct {
	embedder embedder.Embedder
	pool     *ants.Pool
	logger   *slog.Logger
	lock     IndexLock
}

// Config contains configuration for one build
type Config struct {
	ChunkSize int    // Maximum chunk length in characters (default: 900)
	Overlap   int    // Characters shared by consecutive chunks (default: 120)
	BatchSize int    // Texts per embedding call (default: 32)
	SourceDir string // Recorded in the manifest
}

// DefaultConfig returns the default build configuration
func DefaultConfig() *Config {
	return &Config{
		ChunkSize: chunker.DefaultChunkSize,
		Overlap:   chunker.DefaultOverlap,
		BatchSize: embedder.DefaultBatchSize,
	}
}

// Statistics contains statistics about a build
type Statistics struct {
	BuildID   string
	OutDir    string
	Documents int
	Chunks    int
	Batches   int
	Dimension int
	Duration  time.Duration
}

// Option configures a Builder.
type Option func(*Builder) error

// WithWorkers sets how many embedding batches run concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithWorkers(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			n = 1
		}
		if b.pool != nil {
			b.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "indexer")
		return nil
	}
}

// New creates a new Builder
func New(emb embedder.Embedder, opts ...Option) (*Builder, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", embedder.ErrNoProviderEnabled)
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	b := &Builder{
		embedder: emb,
		pool:     pool,
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b, nil
}

// Release frees the worker pool
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Building reports whether a build is running
func (b *Builder) Building() bool {
	return b.lock.Held()
}

// Build produces a complete new index for docs and publishes it at outDir,
// replacing any previous index there. The same documents and configuration
// always yield the same chunk IDs in the same order. Only one build may run
// per Builder at a time.
func (b *Builder) Build(ctx context.Context, docs []types.Document, outDir string, cfg *Config) (*Statistics, error) {
	if !b.lock.TryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer b.lock.Release()

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embedder.DefaultBatchSize
	}
	if cfg.BatchSize > embedder.MaxBatchSize {
		cfg.BatchSize = embedder.MaxBatchSize
	}

	c, err := chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize, Overlap: cfg.Overlap})
	if err != nil {
		return nil, err
	}
	if err := validateDocuments(docs); err != nil {
		return nil, err
	}

	start := time.Now()
	stats := &Statistics{
		BuildID:   uuid.New().String(),
		OutDir:    outDir,
		Documents: len(docs),
	}
	logger := b.logger.With("build_id", stats.BuildID)

	chunks := make([]types.Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, c.ChunkDocument(doc)...)
	}
	stats.Chunks = len(chunks)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	tokens := tokenizer.TokenizeAll(texts)
	logger.Info("documents chunked", "documents", len(docs), "chunks", len(chunks))

	vectors, batches, err := b.embedAll(ctx, texts, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	stats.Batches = batches

	dim, err := vectorDimension(vectors, b.embedder.Dimension())
	if err != nil {
		return nil, err
	}
	stats.Dimension = dim

	data := &storage.IndexData{
		Manifest: storage.Manifest{
			BuildID:    stats.BuildID,
			CreatedAt:  time.Now().UTC(),
			ChunkCount: len(chunks),
			Dimension:  dim,
			Provider:   b.embedder.Provider(),
			Model:      b.embedder.Model(),
			ChunkSize:  cfg.ChunkSize,
			Overlap:    cfg.Overlap,
			SourceDir:  cfg.SourceDir,
		},
		Chunks:  chunks,
		Tokens:  tokens,
		Vectors: vectors,
	}

	staging := storage.StagingDir(outDir, stats.BuildID)
	if err := storage.WriteIndex(ctx, staging, data); err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("failed to write index: %w", err)
	}
	if err := storage.ReplaceDir(staging, outDir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	stats.Duration = time.Since(start)
	logger.Info("index published", "out_dir", outDir, "chunks", stats.Chunks,
		"dimension", dim, "duration", stats.Duration)
	return stats, nil
}

// embedAll embeds texts in batches on the worker pool and returns
// L2-normalized vectors aligned with texts. The first failure cancels the
// remaining batches.
func (b *Builder) embedAll(ctx context.Context, texts []string, batchSize int) ([][]float32, int, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		done     atomic.Int32
		batches  int
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batches++

		wg.Add(1)
		submitErr := b.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			resp, err := b.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				fail(fmt.Errorf("%w: chunks %d-%d: %v", ErrEmbeddingFailed, start, end-1, err))
				return
			}
			if len(resp.Embeddings) != end-start {
				fail(fmt.Errorf("%w: chunks %d-%d: got %d embeddings", ErrEmbeddingFailed, start, end-1, len(resp.Embeddings)))
				return
			}
			for i, vec := range resp.Vectors() {
				vectors[start+i] = embedder.NormalizeVector(vec)
			}

			if n := done.Add(1); n%50 == 0 {
				b.logger.Debug("embedding progress", "batches_done", n)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, 0, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return vectors, batches, nil
}

func validateDocuments(docs []types.Document) error {
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			return fmt.Errorf("%w: document %d: %v", ErrInvalidDocuments, i, err)
		}
		if _, dup := seen[docs[i].DocID]; dup {
			return fmt.Errorf("%w: duplicate doc_id %q", ErrInvalidDocuments, docs[i].DocID)
		}
		seen[docs[i].DocID] = struct{}{}
	}
	return nil
}

// vectorDimension returns the common dimension of vectors, falling back to
// the embedder's declared dimension for an empty corpus.
func vectorDimension(vectors [][]float32, declared int) (int, error) {
	if len(vectors) == 0 {
		return declared, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingFailed, i, len(v), dim)
		}
	}
	if dim == 0 {
		return 0, fmt.Errorf("%w: embedder returned empty vectors", ErrEmbeddingFailed)
	}
	return dim, nil
}
