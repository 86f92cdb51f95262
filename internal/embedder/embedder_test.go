package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	cache := NewCache(2)
	emb := &Embedding{Vector: []float32{1, 2}, Dimension: 2, Hash: "a"}
	cache.Set("a", emb)

	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, emb.Vector, got.Vector)

	// Mutating the copy leaves the cached value intact.
	got.Vector[0] = 42
	again, _ := cache.Get("a")
	assert.Equal(t, float32(1), again.Vector[0])

	cache.Set("b", emb)
	cache.Set("c", emb)
	assert.Equal(t, 2, cache.Size())
	_, ok = cache.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")

	cache.Clear()
	assert.Zero(t, cache.Size())
}

func TestNewCache_DefaultSize(t *testing.T) {
	cache := NewCache(0)
	assert.NotNil(t, cache)
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("m", "text"), ComputeHash("m", "text"))
	assert.NotEqual(t, ComputeHash("m1", "text"), ComputeHash("m2", "text"))
	assert.Len(t, ComputeHash("m", "text"), 64)
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{Text: "  \n"}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "préavis"}))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"empty batch", nil, ErrInvalidInput},
		{"blank text", []string{"ok", " "}, ErrInvalidInput},
		{"too large", make([]string, MaxBatchSize+1), ErrBatchTooLarge},
		{"valid", []string{"a", "b"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, norm(v), 1e-6)

	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(0, NewCache(100))
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, DefaultLocalModel, p.Model())

	ctx := context.Background()
	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Durée du préavis de démission"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, LocalDimension)
	assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)

	// Deterministic across instances.
	p2, err := NewLocalProvider(0, nil)
	require.NoError(t, err)
	b, err := p2.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Durée du préavis de démission"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, b.Vector)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_SimilarTextsScoreHigher(t *testing.T) {
	p, err := NewLocalProvider(256, nil)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{
		"préavis de démission du salarié",
		"le préavis de démission",
		"congés payés annuels",
	}})
	require.NoError(t, err)
	vecs := resp.Vectors()
	require.Len(t, vecs, 3)
	assert.Equal(t, 256, len(vecs[0]))

	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestLocalProvider_CancelledContext(t *testing.T) {
	p, err := NewLocalProvider(0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	emb, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{Provider: "LOCAL", Dimension: 64, CacheSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 64, emb.Dimension())

	emb, err = New(Config{Provider: ProviderOpenAI, BaseURL: "http://localhost:11434/v1", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())
	assert.Equal(t, "nomic-embed-text", emb.Model())
	assert.Zero(t, emb.Dimension())

	_, err = New(Config{Provider: "jina"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
