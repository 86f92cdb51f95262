package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Search the HR and labour law corpus with a hybrid keyword and semantic query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question or keywords, typically in French",
				},
				"filters": map[string]interface{}{
					"type":                 "object",
					"description":          "Exact-match metadata filters, e.g. {\"country\": \"FR\"}. A null value matches anything.",
					"additionalProperties": map[string]interface{}{"type": []string{"string", "number", "boolean", "null"}},
				},
				"top_k_dense": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates kept from the semantic leg",
					"minimum":     0,
				},
				"top_k_bm25": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates kept from the BM25 leg",
					"minimum":     0,
				},
				"top_k_final": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks returned",
					"minimum":     0,
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the semantic score (0 = BM25 only, 1 = semantic only)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// buildIndexTool returns the tool definition for build_index
func buildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_index",
		Description: "Rebuild the search index from a corpus directory of .txt and .md files and serve it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"corpus_dir": map[string]interface{}{
					"type":        "string",
					"description": "Corpus directory; defaults to the configured one",
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Describe the index currently served: build ID, chunk count, embedding model",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
