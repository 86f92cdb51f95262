// Package filter resolves metadata filters to the set of allowed chunk positions.
//
// The index is an inverted map from metadata key and value to a roaring
// bitmap of positions, built once per loaded index. Resolving a filter is the
// intersection of one bitmap per active key.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// Index is an immutable inverted index over chunk metadata
type Index struct {
	size     int
	inverted map[string]map[string]*roaring.Bitmap
}

// NewIndex builds the inverted index; metadata[i] belongs to position i.
// Non-scalar values are not indexed and never match a filter.
func NewIndex(metadata []types.Metadata) *Index {
	idx := &Index{
		size:     len(metadata),
		inverted: make(map[string]map[string]*roaring.Bitmap),
	}

	for pos, md := range metadata {
		for key, value := range md {
			valueKey, ok := types.ScalarKey(value)
			if !ok {
				continue
			}

			valueMap, ok := idx.inverted[key]
			if !ok {
				valueMap = make(map[string]*roaring.Bitmap)
				idx.inverted[key] = valueMap
			}
			bitmap, ok := valueMap[valueKey]
			if !ok {
				bitmap = roaring.New()
				valueMap[valueKey] = bitmap
			}
			bitmap.Add(uint32(pos))
		}
	}

	for _, valueMap := range idx.inverted {
		for _, bitmap := range valueMap {
			bitmap.RunOptimize()
		}
	}
	return idx
}

// Len returns the number of indexed positions
func (idx *Index) Len() int {
	return idx.size
}

// Allowed returns the positions whose metadata equals every non-nil filter
// value. A filter without active entries allows every position. The returned
// bitmap is owned by the caller.
func (idx *Index) Allowed(f types.Filter) *roaring.Bitmap {
	var result *roaring.Bitmap

	for key, value := range f {
		if value == nil {
			continue
		}

		bitmap := idx.lookup(key, value)
		if bitmap == nil {
			return roaring.New()
		}

		if result == nil {
			result = bitmap.Clone()
		} else {
			result.And(bitmap)
		}
		if result.IsEmpty() {
			return result
		}
	}

	if result == nil {
		result = roaring.New()
		result.AddRange(0, uint64(idx.size))
	}
	return result
}

func (idx *Index) lookup(key string, value any) *roaring.Bitmap {
	valueKey, ok := types.ScalarKey(value)
	if !ok {
		return nil
	}
	valueMap, ok := idx.inverted[key]
	if !ok {
		return nil
	}
	return valueMap[valueKey]
}
