package dense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, vecs ...[]float32) *FlatIndex {
	t.Helper()
	idx := NewFlat(len(vecs[0]))
	for _, v := range vecs {
		require.NoError(t, idx.Add(v))
	}
	return idx
}

func TestAdd_DimensionMismatch(t *testing.T) {
	idx := NewFlat(3)
	err := idx.Add([]float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Zero(t, idx.Len())
}

func TestSearch_OrdersByInnerProduct(t *testing.T) {
	idx := buildIndex(t,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0.6, 0.8, 0},
	)
	require.Equal(t, 3, idx.Len())

	hits, err := idx.Search([]float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 1, hits[0].Position)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].Position)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.Equal(t, 0, hits[2].Position)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
}

func TestSearch_TiesBreakByPosition(t *testing.T) {
	idx := buildIndex(t,
		[]float32{0, 1},
		[]float32{1, 0},
		[]float32{1, 0},
	)

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions(hits))
}

func TestSearch_KLargerThanCorpus(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0}, []float32{0, 1})

	hits, err := idx.Search([]float32{1, 0}, 200)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := NewFlat(4)
	hits, err := idx.Search([]float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0})
	_, err := idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVector(t *testing.T) {
	idx := buildIndex(t, []float32{1, 2}, []float32{3, 4})
	assert.Equal(t, []float32{3, 4}, idx.Vector(1))
}

func positions(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Position
	}
	return out
}
