package types

import (
	"crypto/sha1" //nolint:gosec // identifier derivation, not a security boundary
	"encoding/hex"
	"strconv"
)

const (
	// ChunkIDLength is the number of hex characters kept from the digest.
	ChunkIDLength = 12

	// chunkIDPrefixRunes is how much of the chunk text feeds the identifier.
	chunkIDPrefixRunes = 80

	// MetaChunkIndex is the metadata key holding a chunk's index within its document.
	MetaChunkIndex = "chunk_index"
)

// Document is a unit of source text with metadata, as produced by the loader.
type Document struct {
	DocID    string
	Path     string
	Text     string
	Metadata Metadata
}

// Validate checks if the document is valid
func (d *Document) Validate() error {
	if d.DocID == "" {
		return ErrEmptyDocID
	}
	return nil
}

// Chunk is a contiguous span of a document's text.
type Chunk struct {
	ChunkID  string   `json:"chunk_id"`
	DocID    string   `json:"doc_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Validate checks if the chunk is valid
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return ErrEmptyChunkID
	}
	if c.DocID == "" {
		return ErrEmptyDocID
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	return nil
}

// Index returns the chunk_index metadata value, or -1 when absent.
func (c *Chunk) Index() int {
	v, ok := c.Metadata[MetaChunkIndex]
	if !ok {
		return -1
	}
	f, ok := toFloat(v)
	if !ok {
		return -1
	}
	return int(f)
}

// ComputeChunkID derives the stable identifier of the idx-th chunk of a document.
// The digest covers the document ID, the index and the first 80 runes of the text.
func ComputeChunkID(docID string, idx int, text string) string {
	prefix := text
	runes := []rune(text)
	if len(runes) > chunkIDPrefixRunes {
		prefix = string(runes[:chunkIDPrefixRunes])
	}

	h := sha1.New() //nolint:gosec
	h.Write([]byte(docID))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(idx)))
	h.Write([]byte{':'})
	h.Write([]byte(prefix))
	return hex.EncodeToString(h.Sum(nil))[:ChunkIDLength]
}
