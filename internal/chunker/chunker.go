package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters
	DefaultChunkSize = 900

	// DefaultOverlap is the number of characters shared by consecutive chunks
	DefaultOverlap = 120

	// minBoundaryOffset is how far past the window start a separator must be
	// before it is accepted as a cut point
	minBoundaryOffset = 200
)

// separators are tried in priority order when looking for a natural cut point
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("; "),
}

// ErrInvalidConfig is returned for non-positive chunk sizes or negative overlaps
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Config holds chunking parameters
type Config struct {
	ChunkSize int
	Overlap   int
}

// DefaultConfig returns the default chunking parameters
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Chunker splits document text into overlapping chunks with stable identifiers
type Chunker struct {
	size    int
	overlap int
}

// New creates a new Chunker instance
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, cfg.Overlap)
	}
	return &Chunker{size: cfg.ChunkSize, overlap: cfg.Overlap}, nil
}

// Split divides text into chunks of at most ChunkSize characters.
//
// Each window prefers to end just after the last paragraph break, line break,
// sentence end or semicolon it contains, provided that boundary lies more than
// 200 characters into the window. The next window starts Overlap characters
// before the previous cut and always advances by at least one character.
// Splitting stops once a window reaches the end of the text.
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	chunks := make([]string, 0, n/c.size+1)

	i := 0
	for i < n {
		j := min(i+c.size, n)
		cut := j
		for _, sep := range separators {
			k := lastIndex(runes, sep, i, j)
			if k != -1 && k > i+minBoundaryOffset {
				cut = k + len(sep)
				break
			}
		}

		if chunk := strings.TrimSpace(string(runes[i:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if cut >= n {
			break
		}
		i = max(cut-c.overlap, i+1)
	}

	return chunks
}

// ChunkDocument splits a document and attaches identifiers and metadata.
// Chunk metadata is the document metadata plus chunk_index.
func (c *Chunker) ChunkDocument(doc types.Document) []types.Chunk {
	texts := c.Split(doc.Text)
	chunks := make([]types.Chunk, 0, len(texts))
	for idx, text := range texts {
		md := doc.Metadata.Clone()
		md[types.MetaChunkIndex] = idx
		chunks = append(chunks, types.Chunk{
			ChunkID:  types.ComputeChunkID(doc.DocID, idx, text),
			DocID:    doc.DocID,
			Text:     text,
			Metadata: md,
		})
	}
	return chunks
}

// lastIndex returns the start of the last occurrence of sep lying entirely
// within runes[from:to], or -1.
func lastIndex(runes, sep []rune, from, to int) int {
	for k := to - len(sep); k >= from; k-- {
		if hasPrefixAt(runes, sep, k) {
			return k
		}
	}
	return -1
}

func hasPrefixAt(runes, sep []rune, at int) bool {
	for m, r := range sep {
		if runes[at+m] != r {
			return false
		}
	}
	return true
}
