package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/internal/service"
	"github.com/enstso/JuriRH-Assistant/internal/storage"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

type Handler struct {
	service   *service.Service
	startedAt time.Time
}

// SearchRequest is the body of POST /api/v1/search. Omitted numeric fields
// take the configured defaults.
type SearchRequest struct {
	Query     string         `json:"query" binding:"required"`
	Filters   map[string]any `json:"filters"`
	TopKDense *int           `json:"top_k_dense"`
	TopKBM25  *int           `json:"top_k_bm25"`
	TopKFinal *int           `json:"top_k_final"`
	Alpha     *float64       `json:"alpha"`
}

type SearchResponse struct {
	Results    []types.RetrievedChunk `json:"results"`
	Count      int                    `json:"count"`
	DurationMs int64                  `json:"duration_ms"`
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc, startedAt: time.Now()}
}

func (h *Handler) Health(c *gin.Context) {
	st := h.service.Status()

	statusCode := http.StatusOK
	status := "ok"
	if !st.Ready {
		statusCode = http.StatusServiceUnavailable
		status = "no index loaded"
	}

	c.JSON(statusCode, gin.H{
		"status":     status,
		"ready":      st.Ready,
		"build_id":   st.BuildID,
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handler) Search(c *gin.Context) {
	var body SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}

	req := h.service.DefaultRequest(body.Query)
	req.Filters = types.Filter(body.Filters)
	if body.TopKDense != nil {
		req.TopKDense = *body.TopKDense
	}
	if body.TopKBM25 != nil {
		req.TopKBM25 = *body.TopKBM25
	}
	if body.TopKFinal != nil {
		req.TopKFinal = *body.TopKFinal
	}
	if body.Alpha != nil {
		req.Alpha = *body.Alpha
	}

	start := time.Now()
	results, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrInvalidRequest):
			Error(c, http.StatusBadRequest, CodeInvalidSearch, err.Error())
		case errors.Is(err, service.ErrNotReady):
			Error(c, http.StatusServiceUnavailable, CodeNotReady, "no index loaded")
		case errors.Is(err, retriever.ErrEmbedding):
			Error(c, http.StatusBadGateway, CodeEmbedding, "embedding backend unavailable")
		default:
			Error(c, http.StatusInternalServerError, CodeInternalServer, "search failed")
		}
		return
	}

	OK(c, SearchResponse{
		Results:    results,
		Count:      len(results),
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (h *Handler) Status(c *gin.Context) {
	OK(c, h.service.Status())
}

func (h *Handler) Reload(c *gin.Context) {
	st, err := h.service.Reload(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrIndexNotFound):
			Error(c, http.StatusNotFound, CodeNotReady, "index not found, current index kept")
		case errors.Is(err, storage.ErrCorruptIndex):
			Error(c, http.StatusUnprocessableEntity, CodeInternalServer, "index is corrupt, current index kept")
		default:
			Error(c, http.StatusInternalServerError, CodeInternalServer, "reload failed, current index kept")
		}
		return
	}
	OK(c, st)
}
