// Package indexer builds a retrieval index from a set of documents.
//
// A build runs four steps:
//  1. Chunk every document in input order (chunker package), assigning
//     deterministic chunk IDs.
//  2. Tokenize every chunk for BM25 (tokenizer package).
//  3. Embed chunk texts in batches on a bounded worker pool and
//     L2-normalize every vector.
//  4. Persist chunks, tokens and vectors into a staging directory, then
//     swap it into place (storage package).
//
// # Basic Usage
//
//	b, err := indexer.New(emb, indexer.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Release()
//
//	stats, err := b.Build(ctx, docs, "data/index", &indexer.Config{
//	    ChunkSize: 900,
//	    Overlap:   120,
//	    BatchSize: 32,
//	})
//	fmt.Printf("%d chunks in %v\n", stats.Chunks, stats.Duration)
//
// # Guarantees
//
// A build never merges with an existing index; it always writes a complete
// new one. Building the same documents with the same configuration yields the
// same chunk IDs in the same order. Embedding batches finish in any order but
// their vectors are stored at the positions of their chunks.
//
// If any batch fails, remaining batches are cancelled, the staging directory
// is removed and the index at the output directory is left untouched.
//
// # Concurrency
//
// A Builder runs one build at a time. A concurrent call to Build returns
// ErrBuildInProgress immediately.
package indexer
