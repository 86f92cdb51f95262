package filter

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

func testMetadata() []types.Metadata {
	return []types.Metadata{
		{"country": "FR", "chunk_index": float64(0), "filename": "code_travail"},
		{"country": "UNKNOWN", "chunk_index": float64(0), "filename": "notes"},
		{"country": "FR", "chunk_index": float64(1), "filename": "code_travail"},
		{"country": "FR", "tags": []any{"x"}},
	}
}

func TestAllowed(t *testing.T) {
	idx := NewIndex(testMetadata())
	assert.Equal(t, 4, idx.Len())

	tests := []struct {
		name   string
		filter types.Filter
		want   []int
	}{
		{"nil filter", nil, []int{0, 1, 2, 3}},
		{"empty filter", types.Filter{}, []int{0, 1, 2, 3}},
		{"wildcard only", types.Filter{"country": nil}, []int{0, 1, 2, 3}},
		{"single key", types.Filter{"country": "FR"}, []int{0, 2, 3}},
		{"two keys", types.Filter{"country": "FR", "filename": "code_travail"}, []int{0, 2}},
		{"int matches decoded float", types.Filter{"chunk_index": 1}, []int{2}},
		{"wildcard and key", types.Filter{"country": "UNKNOWN", "year": nil}, []int{1}},
		{"no match", types.Filter{"country": "DE"}, []int{}},
		{"unknown key", types.Filter{"year": 2024}, []int{}},
		{"disjoint keys", types.Filter{"country": "UNKNOWN", "chunk_index": 1}, []int{}},
		{"non scalar value", types.Filter{"tags": []any{"x"}}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positions(idx.Allowed(tt.filter)))
		})
	}
}

func TestAllowed_MatchesLinearScan(t *testing.T) {
	md := testMetadata()
	idx := NewIndex(md)

	filters := []types.Filter{
		{"country": "FR"},
		{"filename": "notes"},
		{"chunk_index": 0, "country": "FR"},
	}
	for _, f := range filters {
		want := []int{}
		for pos, m := range md {
			if f.Matches(m) {
				want = append(want, pos)
			}
		}
		assert.Equal(t, want, positions(idx.Allowed(f)))
	}
}

func TestAllowed_ReturnsCopy(t *testing.T) {
	idx := NewIndex(testMetadata())

	b := idx.Allowed(types.Filter{"country": "FR"})
	b.Clear()

	assert.Equal(t, []int{0, 2, 3}, positions(idx.Allowed(types.Filter{"country": "FR"})))
}

func TestAllowed_EmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	assert.True(t, idx.Allowed(nil).IsEmpty())
	assert.True(t, idx.Allowed(types.Filter{"country": "FR"}).IsEmpty())
}

func positions(bitmap *roaring.Bitmap) []int {
	out := make([]int, 0, bitmap.GetCardinality())
	it := bitmap.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
