package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

var (
	// ErrIndexNotFound is returned when an index directory or one of its files is missing
	ErrIndexNotFound = errors.New("index not found")
	// ErrCorruptIndex is returned when persisted data cannot be parsed or is inconsistent
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrMisaligned is returned when the stores to be written do not line up
	ErrMisaligned = errors.New("index stores are not aligned")
)

// File names inside an index directory
const (
	ChunksFile  = "chunks.jsonl"
	TokensFile  = "bm25_tokens.jsonl"
	VectorsFile = "vectors.db"
)

// Manifest describes the build that produced an index
type Manifest struct {
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunk_count"`
	Dimension  int       `json:"dimension"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	ChunkSize  int       `json:"chunk_size"`
	Overlap    int       `json:"overlap"`
	SourceDir  string    `json:"source_dir,omitempty"`
}

// IndexData holds the three position-aligned stores of an index.
// Chunks[i], Tokens[i] and Vectors[i] all describe the chunk at position i.
type IndexData struct {
	Manifest Manifest
	Stats    Stats // set by ReadIndex
	Chunks   []types.Chunk
	Tokens   [][]string
	Vectors  [][]float32
}

// Validate checks that the stores line up with each other and with the manifest
func (d *IndexData) Validate() error {
	n := len(d.Chunks)
	if len(d.Tokens) != n || len(d.Vectors) != n {
		return fmt.Errorf("%w: %d chunks, %d token lists, %d vectors",
			ErrMisaligned, n, len(d.Tokens), len(d.Vectors))
	}
	if d.Manifest.ChunkCount != n {
		return fmt.Errorf("%w: manifest counts %d chunks, found %d", ErrMisaligned, d.Manifest.ChunkCount, n)
	}

	seen := make(map[string]int, n)
	for pos := range d.Chunks {
		c := &d.Chunks[pos]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: chunk %d: %v", ErrMisaligned, pos, err)
		}
		if c.Index() < 0 {
			return fmt.Errorf("%w: chunk %d has no %s", ErrMisaligned, pos, types.MetaChunkIndex)
		}
		if prev, dup := seen[c.ChunkID]; dup {
			return fmt.Errorf("%w: chunk_id %s at positions %d and %d", ErrMisaligned, c.ChunkID, prev, pos)
		}
		seen[c.ChunkID] = pos
		if len(d.Vectors[pos]) != d.Manifest.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				ErrMisaligned, pos, len(d.Vectors[pos]), d.Manifest.Dimension)
		}
	}
	return nil
}

// WriteIndex persists data into dir, which is created if needed.
func WriteIndex(ctx context.Context, dir string, data *IndexData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	if err := writeJSONL(filepath.Join(dir, ChunksFile), data.Chunks); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, TokensFile), data.Tokens); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}

	store, err := CreateVectorStore(ctx, filepath.Join(dir, VectorsFile))
	if err != nil {
		return err
	}
	chunkIDs := make([]string, len(data.Chunks))
	for i := range data.Chunks {
		chunkIDs[i] = data.Chunks[i].ChunkID
	}
	if err := store.WriteIndex(ctx, &data.Manifest, chunkIDs, data.Vectors); err != nil {
		_ = store.Close()
		return err
	}
	return store.Close()
}

// ReadIndex loads all three stores from dir and verifies that they are
// aligned: equal counts matching the manifest, vector rows carrying the
// chunk_id of the chunk at the same position, and consistent dimensions.
// Any malformed record rejects the whole index.
func ReadIndex(ctx context.Context, dir string) (*IndexData, error) {
	for _, name := range []string{ChunksFile, TokensFile, VectorsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, filepath.Join(dir, name))
			}
			return nil, err
		}
	}

	chunks, err := readJSONL[types.Chunk](filepath.Join(dir, ChunksFile), validateChunkRecord)
	if err != nil {
		return nil, err
	}
	tokens, err := readJSONL[[]string](filepath.Join(dir, TokensFile), validateTokenRecord)
	if err != nil {
		return nil, err
	}

	manifest, records, stats, err := readVectorStore(ctx, filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, err
	}

	data := &IndexData{
		Manifest: *manifest,
		Stats:    *stats,
		Chunks:   chunks,
		Tokens:   tokens,
		Vectors:  make([][]float32, len(records)),
	}
	for i, rec := range records {
		if rec.Position != i {
			return nil, fmt.Errorf("%w: vector row %d stored at position %d", ErrCorruptIndex, i, rec.Position)
		}
		if i < len(chunks) && rec.ChunkID != chunks[i].ChunkID {
			return nil, fmt.Errorf("%w: position %d holds vector for %s but chunk %s",
				ErrCorruptIndex, i, rec.ChunkID, chunks[i].ChunkID)
		}
		data.Vectors[i] = rec.Vector
	}

	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return data, nil
}

// ReadManifest reads only the manifest of the index in dir
func ReadManifest(ctx context.Context, dir string) (*Manifest, error) {
	path := filepath.Join(dir, VectorsFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, err
	}

	store, err := OpenVectorStore(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = store.Close()
	}()
	return store.Manifest(ctx)
}

func readVectorStore(ctx context.Context, path string) (*Manifest, []VectorRecord, *Stats, error) {
	store, err := OpenVectorStore(ctx, path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer func() {
		_ = store.Close()
	}()

	manifest, err := store.Manifest(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	records, err := store.Vectors(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read vector store stats: %w", err)
	}
	return manifest, records, stats, nil
}

func validateChunkRecord(c *types.Chunk) error {
	return c.Validate()
}

func validateTokenRecord(tokens *[]string) error {
	if *tokens == nil {
		return errors.New("token list is null")
	}
	return nil
}
