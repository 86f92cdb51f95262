// Package retriever answers hybrid lexical and semantic queries over a
// persisted index.
//
// A Retriever is built once from the three position-aligned stores written by
// the indexer (chunks, BM25 tokens and vectors) and is read-only afterwards,
// so any number of goroutines may call Search on it.
//
// # Query pipeline
//
// Search first resolves the metadata filter into a bitmap of allowed
// positions. An empty bitmap ends the query before any scoring or embedding.
// The BM25 leg and the dense leg then run concurrently:
//
//   - BM25 scores every chunk, keeps the allowed ones and takes the top TopKBM25.
//   - The query is embedded and compared against the 200 nearest chunks (or
//     the whole corpus when smaller). Allowed chunks are collected in
//     similarity order until TopKDense are found.
//
// Each list is min-max normalized on its own and the two are blended:
//
//	score = (1 - alpha) * bm25 + alpha * dense
//
// With alpha 0 the ranking is pure BM25 order, with alpha 1 it is pure dense
// order. Equal scores are ordered by chunk_id, then by position.
//
// # Errors
//
// Invalid requests fail with ErrInvalidRequest and are never clamped. An
// embedder failure fails the query with ErrEmbedding and is not retried.
//
// # Usage
//
//	r, err := retriever.Load(ctx, "data/index", emb)
//	if err != nil {
//	    return err
//	}
//	req := retriever.DefaultRequest("durée du préavis de démission")
//	req.Filters = types.Filter{"country": "FR"}
//	results, err := r.Search(ctx, req)
package retriever
