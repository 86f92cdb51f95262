// Package storage persists a built retrieval index and loads it back.
//
// An index directory holds three position-aligned stores:
//   - chunks.jsonl: one chunk record per line (chunk_id, doc_id, text, metadata)
//   - bm25_tokens.jsonl: one JSON array of tokens per line
//   - vectors.db: SQLite database with the dense vectors and the build manifest
//
// Line i of both JSONL files and the vector row at position i describe the
// same chunk. chunks.jsonl is the authoritative order.
//
// # Database Schema
//
// Tables in vectors.db:
//   - schema_version: applied migrations (semantic versions)
//   - manifest: one row with build ID, timestamp, chunk count, dimension,
//     embedding provider and model, chunking parameters, source directory
//   - vectors: position, chunk_id, dimension and little-endian float32 blob
//
// # Basic Usage
//
//	err := storage.WriteIndex(ctx, dir, &storage.IndexData{
//	    Manifest: manifest,
//	    Chunks:   chunks,
//	    Tokens:   tokens,
//	    Vectors:  vectors,
//	})
//
//	data, err := storage.ReadIndex(ctx, dir)
//	if errors.Is(err, storage.ErrCorruptIndex) {
//	    // refuse to serve
//	}
//
// # Integrity
//
// ReadIndex is eager and strict. A blank or unparsable line, a count that
// disagrees with the manifest, a vector row whose chunk_id differs from the
// chunk at the same position, or a vector of the wrong dimension rejects the
// whole index with ErrCorruptIndex. Missing files yield ErrIndexNotFound.
//
// # Replacing an Index
//
// Builds write into StagingDir(target, buildID) and publish with ReplaceDir,
// so a crash mid-build never leaves a half-written index at target.
//
// # Build Modes
//
// The default build uses the pure Go driver (modernc.org/sqlite). Building
// with -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
