package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/enstso/JuriRH-Assistant/internal/indexer"
	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/internal/service"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeCorpusNotFound  = -32001 // Corpus directory missing or unreadable
	ErrorCodeBuildInProgress = -32002 // Another build is already running
	ErrorCodeNotIndexed      = -32003 // No index loaded
	ErrorCodeEmptyQuery      = -32004 // Query parameter is empty
)

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	req := s.service.DefaultRequest(query)
	var err error
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"top_k_dense", &req.TopKDense},
		{"top_k_bm25", &req.TopKBM25},
		{"top_k_final", &req.TopKFinal},
	} {
		if *p.dst, err = getIntDefault(args, p.key, *p.dst); err != nil {
			return nil, invalidParam(p.key, err)
		}
	}
	if req.Alpha, err = getFloatDefault(args, "alpha", req.Alpha); err != nil {
		return nil, invalidParam("alpha", err)
	}

	if raw, present := args["filters"]; present && raw != nil {
		filters, ok := raw.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "filters must be an object", map[string]interface{}{
				"param": "filters",
			})
		}
		req.Filters = types.Filter(filters)
	}

	start := time.Now()
	results, err := s.service.Search(ctx, req)
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"query":       query,
		"results":     results,
		"count":       len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBuildIndex handles the build_index tool invocation
func (s *Server) handleBuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	corpusDir := getStringDefault(args, "corpus_dir", s.service.Config().Paths.CorpusDir)
	if err := validatePath(corpusDir); err != nil {
		return nil, newMCPError(ErrorCodeCorpusNotFound, "invalid corpus directory", map[string]interface{}{
			"param":  "corpus_dir",
			"reason": err.Error(),
		})
	}

	stats, err := s.service.Rebuild(ctx, corpusDir)
	if errors.Is(err, indexer.ErrBuildInProgress) {
		return nil, newMCPError(ErrorCodeBuildInProgress, "an index build is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "index build failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     true,
		"build_id":    stats.BuildID,
		"documents":   stats.Documents,
		"chunks":      stats.Chunks,
		"batches":     stats.Batches,
		"dimension":   stats.Dimension,
		"index_dir":   stats.OutDir,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.service.Status()

	response := map[string]interface{}{
		"indexed":   st.Ready,
		"building":  st.Building,
		"index_dir": st.IndexDir,
	}
	if !st.Ready {
		response["message"] = "No index loaded. Use the build_index tool to index the corpus."
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	response["index"] = map[string]interface{}{
		"build_id":   st.BuildID,
		"created_at": st.CreatedAt.Format(time.RFC3339),
		"loaded_at":  st.LoadedAt.Format(time.RFC3339),
		"source_dir": st.SourceDir,
	}
	response["statistics"] = map[string]interface{}{
		"chunks_count":   st.Chunks,
		"vectors_count":  st.Vectors,
		"database_bytes": st.DatabaseBytes,
		"dimension":      st.Dimension,
	}
	response["embeddings"] = map[string]interface{}{
		"provider": st.Provider,
		"model":    st.Model,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchError maps a search failure to its MCP error code
func searchError(err error) error {
	switch {
	case errors.Is(err, retriever.ErrInvalidRequest):
		return newMCPError(ErrorCodeInvalidParams, "invalid search parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	case errors.Is(err, service.ErrNotReady), errors.Is(err, storage.ErrIndexNotFound):
		return newMCPError(ErrorCodeNotIndexed, "no index loaded", map[string]interface{}{
			"hint": "run build_index first",
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value.
// Absent or null keeps the default; fractional numbers and other types are rejected.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) (int, error) {
	switch val := args[key].(type) {
	case nil:
		return defaultValue, nil
	case int:
		return val, nil
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidNumber, val)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrInvalidNumber, val)
	}
}

// getFloatDefault extracts a number parameter with a default value.
// Absent or null keeps the default; non-numeric values are rejected.
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) (float64, error) {
	switch val := args[key].(type) {
	case nil:
		return defaultValue, nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidNumber, val)
	}
}

func invalidParam(key string, err error) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid search parameters", map[string]interface{}{
		"param":  key,
		"reason": err.Error(),
	})
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrInvalidNumber   = errors.New("invalid number")
)
