// Package router provides book QA service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/studyforge/bookqa/internal/bookqa/handler"
	"github.com/studyforge/bookqa/internal/bookqa/middleware"
)

// Handlers bundles the HTTP handlers registered on the engine.
type Handlers struct {
	Chat      *handler.ChatHandler
	History   *handler.HistoryHandler
	Transform *handler.TransformHandler
	Ingest    *handler.IngestHandler
	Health    *handler.HealthHandler
}

// Limits carries the per-caller request budgets. A nil Limiter disables
// rate limiting entirely.
type Limits struct {
	Limiter            *middleware.RateLimiter
	ChatPerMinute      int
	TransformPerMinute int
}

// Register registers all service routes.
func Register(engine *gin.Engine, h *Handlers, limits *Limits) {
	logger.Info("Registering routes...")

	engine.GET("/healthz", h.Health.Health)

	v1 := engine.Group("/v1")
	{
		chat := v1.Group("")
		if limits != nil && limits.Limiter != nil {
			chat.Use(limits.Limiter.Limit("chat", limits.ChatPerMinute))
		}
		chat.POST("/chat", h.Chat.Chat)

		v1.GET("/history/:session_id", h.History.Get)
		v1.DELETE("/history/:session_id", h.History.Delete)

		transform := v1.Group("")
		if limits != nil && limits.Limiter != nil {
			transform.Use(limits.Limiter.Limit("transform", limits.TransformPerMinute))
		}
		transform.POST("/personalize", h.Transform.Personalize)
		transform.POST("/translate", h.Transform.Translate)

		v1.POST("/admin/book", h.Ingest.Ingest)

		v1.GET("/metrics", h.Health.Metrics)
	}

	logger.Info("HTTP routes registered")
}
