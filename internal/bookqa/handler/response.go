// Package handler implements the gin HTTP handlers for the service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/bookqa/store"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorBody{Code: code, Message: message})
}

// respondMappedError translates sentinel errors into their HTTP codes.
func respondMappedError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "session_not_found", "session not found or expired")
	case errors.Is(err, store.ErrSessionCleared):
		respondError(c, http.StatusConflict, "session_cleared", "session has already been cleared")
	case errors.Is(err, store.ErrChapterNotFound):
		respondError(c, http.StatusNotFound, "chapter_not_found", "chapter has not been ingested")
	case errors.Is(err, biz.ErrProviderUnavailable):
		respondError(c, http.StatusBadGateway, "provider_error", "upstream model provider failed")
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
