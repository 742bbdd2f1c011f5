package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/model"
)

const (
	maxQueryLength = 2000
	minChapter     = 1
	maxChapter     = 8
)

// ChatHandler serves the question-answering endpoint.
type ChatHandler struct {
	svc *biz.QAService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *biz.QAService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// ChatRequest is the chat request body.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Chapter   int    `json:"chapter"`
}

// ChatResponse is the chat response body.
type ChatResponse struct {
	Answer           string             `json:"answer"`
	Citations        model.CitationList `json:"citations"`
	QueryID          string             `json:"query_id"`
	SessionID        string             `json:"session_id"`
	SessionCreated   bool               `json:"session_created"`
	RetrievalScore   float64            `json:"retrieval_score"`
	Fallback         bool               `json:"fallback"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
}

// Chat handles POST /v1/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		respondError(c, http.StatusBadRequest, "invalid_query", "query must not be empty")
		return
	}
	if len([]rune(req.Query)) > maxQueryLength {
		respondError(c, http.StatusBadRequest, "invalid_query", "query must be at most 2000 characters")
		return
	}
	if req.Chapter != 0 && (req.Chapter < minChapter || req.Chapter > maxChapter) {
		respondError(c, http.StatusBadRequest, "invalid_chapter", "chapter must be between 1 and 8")
		return
	}

	result, err := h.svc.Chat(c.Request.Context(), req.Query, req.SessionID, req.Chapter)
	if err != nil {
		respondMappedError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Answer:           result.Answer,
		Citations:        result.Citations,
		QueryID:          result.QueryID,
		SessionID:        result.SessionID,
		SessionCreated:   result.SessionCreated,
		RetrievalScore:   result.RetrievalScore,
		Fallback:         result.Fallback,
		ProcessingTimeMS: result.ProcessingTimeMS,
	})
}
