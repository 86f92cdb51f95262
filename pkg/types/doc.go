// Package types provides shared type definitions for the JuriRH retrieval engine.
//
// This package defines the domain types exchanged between the loader, the
// index builder, the persistence layer and the retriever: documents, chunks,
// metadata filters and retrieved results.
//
// # Core Types
//
// Document is a unit of source text loaded from the corpus:
//
//	doc := types.Document{
//	    DocID:    "code_travail_L1234",
//	    Text:     body,
//	    Metadata: types.Metadata{"country": "FR"},
//	}
//
// Chunk is a contiguous span of a document. Its ChunkID is derived from the
// document ID, the chunk index and the chunk text, so rebuilding the same
// corpus always produces the same identifiers:
//
//	id := types.ComputeChunkID(doc.DocID, 0, text)
//
// # Metadata and Filters
//
// Metadata values are scalars (string, number, bool or nil). A Filter is
// matched by exact equality on every key whose value is not nil; nil values
// act as wildcards:
//
//	f := types.Filter{"country": "FR", "year": nil}
//	f.Matches(chunk.Metadata)
//
// Numbers compare by value regardless of their Go type, so an int written at
// build time still matches the float64 decoded from a persisted index.
//
// # Results
//
// RetrievedChunk carries a chunk and the fused score it obtained for one
// query. Scores lie in [0, 1].
package types
