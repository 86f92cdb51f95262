// Package dense provides exact inner-product search over unit-normalized vectors.
package dense

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is a search result: a corpus position and its similarity to the query
type Hit struct {
	Position int
	Score    float64
}

// FlatIndex stores vectors contiguously and scans all of them on every search.
// Vectors are expected to be L2-normalized so that inner product equals cosine similarity.
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlat creates an empty index for vectors of the given dimension
func NewFlat(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dimension returns the vector dimension
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Len returns the number of stored vectors
func (f *FlatIndex) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends a vector at the next position
func (f *FlatIndex) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.dim, len(vec))
	}
	f.data = append(f.data, vec...)
	return nil
}

// Vector returns the stored vector at position pos
func (f *FlatIndex) Vector(pos int) []float32 {
	return f.data[pos*f.dim : (pos+1)*f.dim]
}

// Search returns the k positions with the highest inner product, ordered by
// descending score and then ascending position.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.dim, len(query))
	}

	n := f.Len()
	k = min(k, n)
	if k <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for pos := 0; pos < n; pos++ {
		hits[pos] = Hit{Position: pos, Score: dot(query, f.Vector(pos))}
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return hits[:k], nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
