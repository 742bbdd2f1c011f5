package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
)

// IngestHandler serves the admin book-loading endpoint.
type IngestHandler struct {
	ingestor *biz.Ingestor
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingestor *biz.Ingestor) *IngestHandler {
	return &IngestHandler{ingestor: ingestor}
}

// IngestRequest is the ingestion request body.
type IngestRequest struct {
	Path     string `json:"path" binding:"required"`
	Strategy string `json:"strategy"`
}

// Ingest handles POST /v1/admin/book.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}
	if req.Strategy != "" && req.Strategy != biz.StrategyPrimary && req.Strategy != biz.StrategyFallback {
		respondError(c, http.StatusBadRequest, "invalid_strategy", "strategy must be primary or fallback")
		return
	}

	result, err := h.ingestor.IngestFile(c.Request.Context(), req.Path, req.Strategy)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
