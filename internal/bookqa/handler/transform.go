package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/model"
)

// PersonalizationHeader is the gateway-asserted boundary fact allowing
// difficulty rewrites. The service trusts the gateway and never inspects
// credentials itself.
const PersonalizationHeader = "X-Personalization-Allowed"

// TransformHandler serves the chapter personalization and translation
// endpoints.
type TransformHandler struct {
	transformer *biz.Transformer
}

// NewTransformHandler creates a transform handler.
func NewTransformHandler(transformer *biz.Transformer) *TransformHandler {
	return &TransformHandler{transformer: transformer}
}

// PersonalizeRequest is the personalization request body.
type PersonalizeRequest struct {
	ChapterID       int    `json:"chapter_id"`
	DifficultyLevel string `json:"difficulty_level"`
}

// Personalize handles POST /v1/personalize.
func (h *TransformHandler) Personalize(c *gin.Context) {
	if c.GetHeader(PersonalizationHeader) != "true" {
		respondError(c, http.StatusForbidden, "personalization_not_allowed", "personalization requires gateway approval")
		return
	}

	var req PersonalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.ChapterID < minChapter || req.ChapterID > maxChapter {
		respondError(c, http.StatusBadRequest, "invalid_chapter", "chapter_id must be between 1 and 8")
		return
	}
	switch req.DifficultyLevel {
	case model.DifficultyBeginner, model.DifficultyIntermediate, model.DifficultyAdvanced:
	default:
		respondError(c, http.StatusBadRequest, "invalid_difficulty", "difficulty_level must be beginner, intermediate or advanced")
		return
	}

	start := time.Now()
	result, err := h.transformer.Rewrite(c.Request.Context(), req.ChapterID, req.DifficultyLevel)
	if err != nil {
		respondMappedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chapter_id":         req.ChapterID,
		"difficulty_level":   req.DifficultyLevel,
		"content":            result.Content,
		"was_cached":         result.WasCached,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// TranslateRequest is the translation request body.
type TranslateRequest struct {
	ChapterID  int    `json:"chapter_id"`
	TargetLang string `json:"target_lang"`
}

// Translate handles POST /v1/translate.
func (h *TransformHandler) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.ChapterID < minChapter || req.ChapterID > maxChapter {
		respondError(c, http.StatusBadRequest, "invalid_chapter", "chapter_id must be between 1 and 8")
		return
	}

	start := time.Now()
	result, lang, err := h.transformer.Translate(c.Request.Context(), req.ChapterID, req.TargetLang)
	if err != nil {
		respondMappedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chapter_id":         req.ChapterID,
		"target_lang":        lang,
		"content":            result.Content,
		"was_cached":         result.WasCached,
		"degraded":           result.Degraded,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}
