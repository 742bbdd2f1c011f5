package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/model"
)

// HistoryHandler serves the conversation history endpoints.
type HistoryHandler struct {
	sessions *biz.SessionManager
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(sessions *biz.SessionManager) *HistoryHandler {
	return &HistoryHandler{sessions: sessions}
}

// HistoryMessage is one exchange in the history response.
type HistoryMessage struct {
	TurnID           string             `json:"turn_id"`
	Query            string             `json:"query"`
	Answer           string             `json:"answer"`
	Citations        model.CitationList `json:"citations"`
	RetrievalScore   float64            `json:"retrieval_score"`
	Fallback         bool               `json:"fallback"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	CreatedAt        string             `json:"created_at"`
}

// HistoryResponse is the history response body.
type HistoryResponse struct {
	SessionID  string           `json:"session_id"`
	Messages   []HistoryMessage `json:"messages"`
	TotalCount int64            `json:"total_count"`
}

// Get handles GET /v1/history/:session_id.
func (h *HistoryHandler) Get(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	turns, total, err := h.sessions.History(c.Request.Context(), sessionID, limit, offset)
	if err != nil {
		respondMappedError(c, err)
		return
	}

	messages := make([]HistoryMessage, len(turns))
	for i, turn := range turns {
		messages[i] = HistoryMessage{
			TurnID:           turn.TurnID,
			Query:            turn.Query,
			Answer:           turn.Answer,
			Citations:        turn.Citations,
			RetrievalScore:   turn.RetrievalScore,
			Fallback:         turn.Fallback,
			ProcessingTimeMS: turn.ProcessingTimeMS,
			CreatedAt:        turn.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, HistoryResponse{
		SessionID:  sessionID,
		Messages:   messages,
		TotalCount: total,
	})
}

// Delete handles DELETE /v1/history/:session_id.
func (h *HistoryHandler) Delete(c *gin.Context) {
	sessionID := c.Param("session_id")

	deleted, err := h.sessions.Clear(c.Request.Context(), sessionID)
	if err != nil {
		respondMappedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"deleted_count": deleted,
	})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
