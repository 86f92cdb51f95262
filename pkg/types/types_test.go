package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChunkID(t *testing.T) {
	id := ComputeChunkID("doc_fr", 0, "Le contrat de travail")
	assert.Equal(t, "b1170f161bb7", id)
	assert.Len(t, id, ChunkIDLength)

	// Only the first 80 runes of the text participate.
	long := strings.Repeat("x", 80)
	assert.Equal(t, "31baa937684f", ComputeChunkID("a", 1, long))
	assert.Equal(t, ComputeChunkID("a", 1, long), ComputeChunkID("a", 1, long+"tail"))

	assert.NotEqual(t, ComputeChunkID("a", 1, long), ComputeChunkID("a", 2, long))
	assert.NotEqual(t, ComputeChunkID("a", 1, long), ComputeChunkID("b", 1, long))
}

func TestChunkIndex(t *testing.T) {
	c := Chunk{Metadata: Metadata{MetaChunkIndex: float64(3)}}
	assert.Equal(t, 3, c.Index())

	c = Chunk{Metadata: Metadata{MetaChunkIndex: 4}}
	assert.Equal(t, 4, c.Index())

	c = Chunk{}
	assert.Equal(t, -1, c.Index())
}

func TestScalarEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "FR", "FR", true},
		{"different string", "FR", "UNKNOWN", false},
		{"int and float", 3, float64(3), true},
		{"int64 and int", int64(7), 7, true},
		{"different numbers", 1, 2, false},
		{"string vs number", "1", 1, false},
		{"bools", true, true, true},
		{"bool mismatch", true, false, false},
		{"nil nil", nil, nil, true},
		{"nil vs value", nil, "FR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScalarEqual(tt.a, tt.b))
		})
	}
}

func TestScalarKey(t *testing.T) {
	k1, ok := ScalarKey(3)
	require.True(t, ok)
	k2, ok := ScalarKey(float64(3))
	require.True(t, ok)
	assert.Equal(t, k1, k2)

	ks, ok := ScalarKey("3")
	require.True(t, ok)
	assert.NotEqual(t, k1, ks)

	_, ok = ScalarKey([]string{"x"})
	assert.False(t, ok)
}

func TestFilterMatches(t *testing.T) {
	md := Metadata{"country": "FR", "chunk_index": float64(0), "draft": false}

	assert.True(t, Filter{}.Matches(md))
	assert.True(t, Filter{"country": "FR"}.Matches(md))
	assert.True(t, Filter{"country": "FR", "year": nil}.Matches(md))
	assert.True(t, Filter{"chunk_index": 0}.Matches(md))
	assert.True(t, Filter{"draft": false}.Matches(md))
	assert.False(t, Filter{"country": "UNKNOWN"}.Matches(md))
	assert.False(t, Filter{"year": 2024}.Matches(md))
}

func TestFilterActiveAndValidate(t *testing.T) {
	f := Filter{"country": "FR", "year": nil}
	assert.Equal(t, Filter{"country": "FR"}, f.Active())
	assert.NoError(t, f.Validate())

	err := Filter{"tags": []string{"a"}}.Validate()
	assert.ErrorIs(t, err, ErrNonScalarFilter)
}

func TestValidate(t *testing.T) {
	d := Document{}
	assert.ErrorIs(t, d.Validate(), ErrEmptyDocID)

	c := Chunk{ChunkID: "abc", DocID: "d"}
	assert.ErrorIs(t, c.Validate(), ErrEmptyContent)

	rc := RetrievedChunk{ChunkID: "abc", Score: 1.2}
	assert.ErrorIs(t, rc.Validate(), ErrInvalidScore)
}
