// Package config loads the JuriRH configuration.
//
// Settings come from three layers, later ones winning: built-in defaults, a
// TOML file, then environment variables. The file is organised in sections:
//
//	[paths]       corpus_dir, index_dir
//	[embeddings]  provider, model_name, base_url, api_key, dimension, batch_size, cache_size, workers
//	[chunking]    chunk_size, overlap
//	[retrieval]   top_k_dense, top_k_bm25, top_k_final, alpha, k1, b
//	[server]      host, port, gin_mode, watch_index
//	[log]         level, format
//
// Recognised environment variables are JURIRH_CONFIG, JURIRH_INDEX_DIR,
// JURIRH_CORPUS_DIR, JURIRH_EMBEDDING_PROVIDER, JURIRH_EMBEDDING_MODEL,
// JURIRH_EMBEDDING_BASE_URL, OPENAI_API_KEY, JURIRH_HTTP_PORT and
// JURIRH_LOG_LEVEL.
package config
