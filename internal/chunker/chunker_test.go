package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{ChunkSize: size, Overlap: overlap})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(Config{ChunkSize: 0, Overlap: 10})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{ChunkSize: 100, Overlap: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplit_EmptyInput(t *testing.T) {
	c := newChunker(t, 900, 120)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  \n"))
}

func TestSplit_ShortInput(t *testing.T) {
	c := newChunker(t, 900, 120)
	chunks := c.Split("  Article L1221-1. Le contrat de travail est soumis aux règles du droit commun.  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Article L1221-1. Le contrat de travail est soumis aux règles du droit commun.", chunks[0])
}

func TestSplit_ParagraphBoundary(t *testing.T) {
	c := newChunker(t, 900, 0)
	text := strings.Repeat("a", 300) + "\n\n" + strings.Repeat("b", 700)

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 300), chunks[0])
	assert.Equal(t, strings.Repeat("b", 700), chunks[1])
}

func TestSplit_BoundaryTooCloseToStart(t *testing.T) {
	c := newChunker(t, 900, 0)
	text := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 1000)

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	// The break sits only 100 characters in, so the window is hard-cut.
	assert.Equal(t, 900, utf8.RuneCountInString(chunks[0]))
	assert.True(t, strings.HasPrefix(chunks[0], strings.Repeat("a", 100)+"\n\nb"))
	assert.Equal(t, strings.Repeat("b", 202), chunks[1])
}

func TestSplit_SeparatorPriority(t *testing.T) {
	c := newChunker(t, 900, 0)
	// A sentence end appears later than the paragraph break, but the
	// paragraph break has priority.
	text := strings.Repeat("a", 250) + "\n\n" + strings.Repeat("b", 300) + ". " + strings.Repeat("c", 600)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("a", 250), chunks[0])
}

func TestSplit_SentenceBoundary(t *testing.T) {
	c := newChunker(t, 900, 0)
	text := strings.Repeat("a", 500) + ". " + strings.Repeat("b", 600)

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 500)+".", chunks[0])
	assert.Equal(t, strings.Repeat("b", 600), chunks[1])
}

func TestSplit_HardCutWithOverlap(t *testing.T) {
	c := newChunker(t, 900, 120)
	text := strings.Repeat("x", 1000)

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 900)
	assert.Len(t, chunks[1], 220)
}

func TestSplit_OverlapLargerThanWindow(t *testing.T) {
	c := newChunker(t, 50, 500)
	text := strings.Repeat("y", 120)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 50)
	}
	assertCoverage(t, text, chunks)
}

func TestSplit_CountsRunes(t *testing.T) {
	c := newChunker(t, 10, 0)
	chunks := c.Split(strings.Repeat("é", 25))
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
}

func TestSplit_MaxLengthAndCoverage(t *testing.T) {
	text := sampleLegalText(40)

	configs := []Config{
		{ChunkSize: 900, Overlap: 120},
		{ChunkSize: 400, Overlap: 50},
		{ChunkSize: 250, Overlap: 0},
		{ChunkSize: 1200, Overlap: 300},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("size=%d/overlap=%d", cfg.ChunkSize, cfg.Overlap), func(t *testing.T) {
			c := newChunker(t, cfg.ChunkSize, cfg.Overlap)
			chunks := c.Split(text)
			require.NotEmpty(t, chunks)
			for _, ch := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(ch), cfg.ChunkSize)
				assert.NotEmpty(t, ch)
			}
			assertCoverage(t, text, chunks)
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := newChunker(t, 300, 60)
	text := sampleLegalText(15)
	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestChunkDocument(t *testing.T) {
	c := newChunker(t, 300, 60)
	doc := types.Document{
		DocID:    "code_travail",
		Text:     sampleLegalText(10),
		Metadata: types.Metadata{"country": "FR", "filename": "code_travail"},
	}

	chunks := c.ChunkDocument(doc)
	require.Greater(t, len(chunks), 1)

	for idx, ch := range chunks {
		require.NoError(t, ch.Validate())
		assert.Equal(t, "code_travail", ch.DocID)
		assert.Equal(t, types.ComputeChunkID(doc.DocID, idx, ch.Text), ch.ChunkID)
		assert.Equal(t, idx, ch.Metadata[types.MetaChunkIndex])
		assert.Equal(t, "FR", ch.Metadata["country"])
	}

	// Document metadata is not mutated.
	_, ok := doc.Metadata[types.MetaChunkIndex]
	assert.False(t, ok)

	again := c.ChunkDocument(doc)
	assert.Equal(t, chunks, again)
}

// assertCoverage checks that consecutive chunks leave no non-whitespace gap
// in the source text.
func assertCoverage(t *testing.T, text string, chunks []string) {
	t.Helper()
	text = strings.TrimSpace(text)

	end := 0
	searchFrom := 0
	for n, ch := range chunks {
		off := strings.Index(text[searchFrom:], ch)
		require.GreaterOrEqual(t, off, 0, "chunk %d not found in order", n)
		start := searchFrom + off

		if start > end {
			gap := text[end:start]
			assert.Empty(t, strings.TrimFunc(gap, unicode.IsSpace), "gap before chunk %d", n)
		}
		end = max(end, start+len(ch))
		searchFrom = start
	}
	assert.Empty(t, strings.TrimFunc(text[end:], unicode.IsSpace), "uncovered tail")
}

func sampleLegalText(articles int) string {
	var b strings.Builder
	for i := 1; i <= articles; i++ {
		fmt.Fprintf(&b, "Article L12%02d. Le salarié bénéficie d'un droit n°%d; ", i, i)
		fmt.Fprintf(&b, "l'employeur informe le comité social et économique des mesures envisagées au titre %d. ", i)
		fmt.Fprintf(&b, "Les modalités de l'article %d sont fixées par accord collectif ou, à défaut, par le décret n°%d.\n", i, 1000+i)
		if i%3 == 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
