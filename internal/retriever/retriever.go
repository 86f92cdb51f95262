package retriever

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/enstso/JuriRH-Assistant/internal/dense"
	"github.com/enstso/JuriRH-Assistant/internal/embedder"
	"github.com/enstso/JuriRH-Assistant/internal/filter"
	"github.com/enstso/JuriRH-Assistant/internal/fusion"
	"github.com/enstso/JuriRH-Assistant/internal/lexical"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/internal/tokenizer"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// Default search parameters
const (
	DefaultTopKDense = 8
	DefaultTopKBM25  = 12
	DefaultTopKFinal = 8
	DefaultAlpha     = 0.55

	// DenseCandidatePool is how many nearest neighbours are scanned before
	// the metadata filter is applied to the dense leg
	DenseCandidatePool = 200
)

var (
	// ErrInvalidRequest is returned for empty queries, negative top_k values
	// or an alpha outside [0, 1]
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrEmbedding is returned when the query cannot be embedded
	ErrEmbedding = errors.New("query embedding failed")
	// ErrModelMismatch is returned when the embedder does not produce vectors
	// of the dimension the index was built with
	ErrModelMismatch = errors.New("embedder does not match index")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query     string
	Filters   types.Filter
	TopKDense int
	TopKBM25  int
	TopKFinal int
	Alpha     float64
}

// DefaultRequest returns a request for query with the default parameters
func DefaultRequest(query string) SearchRequest {
	return SearchRequest{
		Query:     query,
		TopKDense: DefaultTopKDense,
		TopKBM25:  DefaultTopKBM25,
		TopKFinal: DefaultTopKFinal,
		Alpha:     DefaultAlpha,
	}
}

// Validate rejects requests instead of clamping them
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}
	if math.IsNaN(r.Alpha) || r.Alpha < 0 || r.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0, 1], got %v", ErrInvalidRequest, r.Alpha)
	}
	if r.TopKDense < 0 || r.TopKBM25 < 0 || r.TopKFinal < 0 {
		return fmt.Errorf("%w: top_k values must be non-negative (dense=%d, bm25=%d, final=%d)",
			ErrInvalidRequest, r.TopKDense, r.TopKBM25, r.TopKFinal)
	}
	if err := r.Filters.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Retriever answers hybrid queries over one loaded index. It is immutable
// after construction and safe for concurrent use.
type Retriever struct {
	manifest storage.Manifest
	stats    storage.Stats
	chunks   []types.Chunk
	bm25     *lexical.BM25
	dense    *dense.FlatIndex
	filter   *filter.Index
	embedder embedder.Embedder
	logger   *slog.Logger
}

// Option configures a Retriever
type Option func(*options)

type options struct {
	params lexical.Params
	logger *slog.Logger
}

// WithBM25Params overrides the BM25 parameters
func WithBM25Params(p lexical.Params) Option {
	return func(o *options) {
		o.params = p
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Load reads the index in dir and builds a Retriever over it. Missing or
// corrupt artifacts fail the load.
func Load(ctx context.Context, dir string, emb embedder.Embedder, opts ...Option) (*Retriever, error) {
	data, err := storage.ReadIndex(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load index %s: %w", dir, err)
	}
	return New(data, emb, opts...)
}

// New builds a Retriever over index data that is already in memory
func New(data *storage.IndexData, emb embedder.Embedder, opts ...Option) (*Retriever, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", embedder.ErrNoProviderEnabled)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorruptIndex, err)
	}
	if d := emb.Dimension(); d > 0 && len(data.Chunks) > 0 && d != data.Manifest.Dimension {
		return nil, fmt.Errorf("%w: index dimension %d, embedder %s/%s dimension %d",
			ErrModelMismatch, data.Manifest.Dimension, emb.Provider(), emb.Model(), d)
	}

	o := options{params: lexical.DefaultParams(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	flat := dense.NewFlat(data.Manifest.Dimension)
	metadata := make([]types.Metadata, len(data.Chunks))
	for pos := range data.Chunks {
		if err := flat.Add(data.Vectors[pos]); err != nil {
			return nil, fmt.Errorf("%w: position %d: %v", storage.ErrCorruptIndex, pos, err)
		}
		metadata[pos] = data.Chunks[pos].Metadata
	}

	r := &Retriever{
		manifest: data.Manifest,
		stats:    data.Stats,
		chunks:   data.Chunks,
		bm25:     lexical.New(data.Tokens, o.params),
		dense:    flat,
		filter:   filter.NewIndex(metadata),
		embedder: emb,
		logger:   o.logger.With("component", "retriever"),
	}
	r.logger.Info("index loaded", "build_id", r.manifest.BuildID, "chunks", len(r.chunks),
		"dimension", r.manifest.Dimension, "model", r.manifest.Model)
	return r, nil
}

// Manifest returns the manifest of the loaded index
func (r *Retriever) Manifest() storage.Manifest {
	return r.manifest
}

// Stats returns the vector store statistics read at load time. They are
// zero for a Retriever built with New over in-memory data.
func (r *Retriever) Stats() storage.Stats {
	return r.stats
}

// Len returns the number of indexed chunks
func (r *Retriever) Len() int {
	return len(r.chunks)
}

// Search runs a hybrid query:
//  1. positions allowed by the filter are computed first; none means no results
//  2. BM25 scores the whole corpus, keeps allowed positions, top TopKBM25
//  3. the query embedding is matched against min(200, corpus) neighbours,
//     filtered down to the first TopKDense allowed ones
//  4. both lists are min-max normalized and fused with weight Alpha on dense
//
// Results are ordered by fused score. Ties rank candidates of a weighted
// list first, then by normalized lexical and dense scores, then chunk_id.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) ([]types.RetrievedChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if len(r.chunks) == 0 || req.TopKFinal == 0 {
		return []types.RetrievedChunk{}, nil
	}
	allowed := r.filter.Allowed(req.Filters)
	if allowed.IsEmpty() {
		return []types.RetrievedChunk{}, nil
	}

	var lexicalList, denseList []fusion.Candidate
	g, gctx := errgroup.WithContext(ctx)
	if req.TopKBM25 > 0 {
		g.Go(func() error {
			lexicalList = r.lexicalCandidates(req.Query, allowed, req.TopKBM25)
			return nil
		})
	}
	if req.TopKDense > 0 {
		g.Go(func() error {
			var err error
			denseList, err = r.denseCandidates(gctx, req.Query, allowed, req.TopKDense)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := fusion.Rank(lexicalList, denseList, req.Alpha, req.TopKFinal, r.byChunkID)

	results := make([]types.RetrievedChunk, len(ranked))
	for i, c := range ranked {
		chunk := &r.chunks[c.Position]
		results[i] = types.RetrievedChunk{
			ChunkID:  chunk.ChunkID,
			DocID:    chunk.DocID,
			Text:     chunk.Text,
			Metadata: chunk.Metadata.Clone(),
			Score:    c.Score,
		}
	}

	r.logger.Debug("search completed", "lexical", len(lexicalList), "dense", len(denseList),
		"results", len(results))
	return results, nil
}

// lexicalCandidates scores every chunk, then keeps the best allowed positions.
func (r *Retriever) lexicalCandidates(query string, allowed *roaring.Bitmap, k int) []fusion.Candidate {
	scores := r.bm25.ScoreAll(tokenizer.Tokenize(query))

	list := make([]fusion.Candidate, 0, allowed.GetCardinality())
	it := allowed.Iterator()
	for it.HasNext() {
		pos := int(it.Next())
		list = append(list, fusion.Candidate{Position: pos, Score: scores[pos]})
	}

	slices.SortStableFunc(list, func(a, b fusion.Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(list) > k {
		list = list[:k]
	}
	return list
}

// denseCandidates searches wide over the unfiltered index and filters down.
func (r *Retriever) denseCandidates(ctx context.Context, query string, allowed *roaring.Bitmap, k int) ([]fusion.Candidate, error) {
	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	hits, err := r.dense.Search(embedder.NormalizeVector(emb.Vector), min(DenseCandidatePool, len(r.chunks)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	list := make([]fusion.Candidate, 0, k)
	for _, h := range hits {
		if !allowed.Contains(uint32(h.Position)) {
			continue
		}
		list = append(list, fusion.Candidate{Position: h.Position, Score: h.Score})
		if len(list) == k {
			break
		}
	}
	return list, nil
}

func (r *Retriever) byChunkID(a, b int) bool {
	return r.chunks[a].ChunkID < r.chunks[b].ChunkID
}
