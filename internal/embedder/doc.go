// Package embedder turns chunk and query texts into dense vectors.
//
// Two providers implement the Embedder interface:
//
//   - OpenAIProvider talks to any OpenAI-compatible embeddings endpoint
//     (OpenAI itself, Ollama, vLLM, text-embeddings-inference) through
//     langchaingo. It is the production provider, typically serving
//     intfloat/multilingual-e5-small.
//   - LocalProvider hashes tokens and character trigrams into a fixed number
//     of buckets. It needs no network and is deterministic, which makes it the
//     default for development and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOpenAI,
//	    BaseURL:   "http://localhost:11434/v1",
//	    Model:     "intfloat/multilingual-e5-small",
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"durée du préavis", "congés payés"},
//	})
//
// # Caching
//
// Both providers accept an optional Cache, an LRU keyed by the SHA-256 of the
// model name and text. Cached vectors are returned as copies, so callers may
// modify them freely.
//
// # Retries
//
// OpenAIProvider.GenerateBatch retries failed calls with exponential backoff
// (3 attempts, 100ms doubling up to 5s). GenerateEmbedding makes a single
// attempt: query-time failures are reported to the caller immediately.
//
// # Normalization
//
// Vectors returned by the providers are not guaranteed to be unit length.
// Callers that rely on inner product as cosine similarity apply
// NormalizeVector, as the index builder and retriever do.
package embedder
