package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/enstso/JuriRH-Assistant/internal/tokenizer"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOpenAIModel = "intfloat/multilingual-e5-small"
	DefaultLocalModel  = "hashed-bow-v1"

	// Dimensions
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 32
	MaxBatchSize     = 256

	// DefaultCacheSize is the number of embeddings kept in memory
	DefaultCacheSize = 10000

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// localNgram is the character n-gram length hashed by the local provider
	localNgram = 3
	// localNgramWeight scales n-gram features relative to whole tokens
	localNgramWeight = 0.5
)

// OpenAIProvider implements Embedder against any OpenAI-compatible embeddings
// endpoint (OpenAI, Ollama, vLLM, text-embeddings-inference).
type OpenAIProvider struct {
	client    embeddings.Embedder
	model     string
	dimension atomic.Int64
	cache     *Cache
	retry     RetryConfig
	logger    *slog.Logger
}

// OpenAIConfig configures an OpenAIProvider
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int // expected dimension; 0 accepts whatever the endpoint returns
}

// NewOpenAIProvider creates an embedder backed by an OpenAI-compatible API
func NewOpenAIProvider(cfg OpenAIConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(MaxBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	return newOpenAIProvider(emb, cfg.Model, cfg.Dimension, cache), nil
}

func newOpenAIProvider(client embeddings.Embedder, model string, dim int, cache *Cache) *OpenAIProvider {
	p := &OpenAIProvider{
		client: client,
		model:  model,
		cache:  cache,
		retry:  DefaultRetryConfig(),
		logger: slog.Default().With("component", "openai-embedder"),
	}
	p.dimension.Store(int64(dim))
	return p
}

// GenerateEmbedding embeds a single query text. Failures are returned after
// one attempt so the caller decides whether to retry.
func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(o.model, req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vec, err := o.client.EmbedQuery(ctx, req.Text)
	if err != nil {
		o.logger.Error("query embedding failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if err := o.checkDimension(vec); err != nil {
		return nil, err
	}

	emb := &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  ProviderOpenAI,
		Model:     o.model,
		Hash:      hash,
	}
	if o.cache != nil {
		o.cache.Set(hash, emb)
	}
	return emb, nil
}

// GenerateBatch embeds a batch of texts with retry and exponential backoff.
// Cached texts are not sent to the endpoint again.
func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(req.Texts))
	hashes := make([]string, len(req.Texts))
	missing := make([]int, 0, len(req.Texts))
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(o.model, text)
		if o.cache != nil {
			if emb, ok := o.cache.Get(hashes[i]); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
			return o.client.EmbedDocuments(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, o.retry.MaxRetries, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(vectors))
		}

		for j, i := range missing {
			if err := o.checkDimension(vectors[j]); err != nil {
				return nil, err
			}
			emb := &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  ProviderOpenAI,
				Model:     o.model,
				Hash:      hashes[i],
			}
			if o.cache != nil {
				o.cache.Set(hashes[i], emb)
			}
			out[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   ProviderOpenAI,
		Model:      o.model,
	}, nil
}

// checkDimension records the dimension on first use and rejects vectors that disagree with it.
func (o *OpenAIProvider) checkDimension(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding returned", ErrProviderFailed)
	}
	if o.dimension.CompareAndSwap(0, int64(len(vec))) {
		return nil
	}
	if want := o.dimension.Load(); int64(len(vec)) != want {
		return fmt.Errorf("%w: expected dimension %d, got %d", ErrProviderFailed, want, len(vec))
	}
	return nil
}

func (o *OpenAIProvider) Dimension() int {
	return int(o.dimension.Load())
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// LocalProvider is an offline embedder based on feature hashing.
//
// Each normalized token and each of its character trigrams is hashed into one
// of Dimension buckets with a hash-derived sign, and the resulting vector is
// L2-normalized. Texts sharing vocabulary or word stems get a positive inner
// product, which is enough for development setups and tests without a model
// server. Output is fully deterministic.
type LocalProvider struct {
	model string
	dim   int
	cache *Cache
}

// NewLocalProvider creates a local hashing embedder; dim <= 0 selects LocalDimension
func NewLocalProvider(dim int, cache *Cache) (*LocalProvider, error) {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{
		model: DefaultLocalModel,
		dim:   dim,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.embed(req.Text),
		Dimension: l.dim,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, tok := range tokenizer.Tokenize(text) {
		l.addFeature(vec, tok, 1)

		runes := []rune(tok)
		for i := 0; i+localNgram <= len(runes); i++ {
			l.addFeature(vec, "#"+string(runes[i:i+localNgram]), localNgramWeight)
		}
	}
	return NormalizeVector(vec)
}

func (l *LocalProvider) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := sum % uint64(l.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (l *LocalProvider) Dimension() int {
	return l.dim
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
