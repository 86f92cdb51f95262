// Package mcp implements the Model Context Protocol (MCP) server for JuriRH.
//
// The MCP server exposes three tools to AI assistants:
//   - search_chunks: Hybrid search over the HR and labour law corpus
//   - build_index: Rebuild the index from a corpus directory and serve it
//   - get_status: Describe the index currently served
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Standard output carries the protocol, so the server logs to stderr.
//
// # Basic Usage
//
//	jurirh mcp --config jurirh.toml
//
// # Tool: search_chunks
//
//	Request:
//	{
//	  "name": "search_chunks",
//	  "arguments": {
//	    "query": "durée du préavis de démission",
//	    "filters": {"country": "FR"},
//	    "top_k_final": 5,
//	    "alpha": 0.55
//	  }
//	}
//
//	Response:
//	{
//	  "query": "durée du préavis de démission",
//	  "count": 2,
//	  "results": [
//	    {"chunk_id": "b1170f161bb7", "doc_id": "code_travail", "text": "...", "metadata": {"country": "FR"}, "score": 1}
//	  ]
//	}
//
// Omitted parameters take the configured defaults (top_k_dense 8, top_k_bm25
// 12, top_k_final 8, alpha 0.55). Out-of-range values are rejected, never
// clamped.
//
// # Tool: build_index
//
//	Request:
//	{
//	  "name": "build_index",
//	  "arguments": {"corpus_dir": "/data/corpus"}
//	}
//
// The build runs to completion before the new index replaces the served one.
// A second build while one is running fails with code -32002.
//
// # Tool: get_status
//
// Returns whether an index is loaded, its build ID, chunk count, dimension
// and embedding model.
//
// # Error Codes
//
//	-32602  invalid parameters (bad alpha, negative top_k, non-scalar filter)
//	-32603  internal error (embedding backend down, build failure)
//	-32001  corpus directory not found
//	-32002  build already in progress
//	-32003  no index loaded
//	-32004  empty query
package mcp
