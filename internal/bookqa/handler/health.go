package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/studyforge/bookqa/internal/bookqa/metrics"
	"github.com/studyforge/bookqa/pkg/component/milvus"
	"github.com/studyforge/bookqa/pkg/component/postgres"
)

// HealthHandler serves liveness and metrics endpoints.
type HealthHandler struct {
	pg     *postgres.Client
	milvus *milvus.Client
	rdb    *goredis.Client
}

// NewHealthHandler creates a health handler. rdb may be nil when the Redis
// integration is disabled.
func NewHealthHandler(pg *postgres.Client, mv *milvus.Client, rdb *goredis.Client) *HealthHandler {
	return &HealthHandler{pg: pg, milvus: mv, rdb: rdb}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c *gin.Context) {
	components := gin.H{}
	healthy := true

	if err := h.pg.Ping(c.Request.Context()); err != nil {
		components["postgres"] = "degraded"
		healthy = false
	} else {
		components["postgres"] = "ok"
	}

	if err := h.milvus.Ping(c.Request.Context()); err != nil {
		components["milvus"] = "degraded"
		healthy = false
	} else {
		components["milvus"] = "ok"
	}

	if h.rdb == nil {
		components["redis"] = "disabled"
	} else if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
		components["redis"] = "degraded"
	} else {
		components["redis"] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

// Metrics handles GET /v1/metrics.
func (h *HealthHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Get().Snapshot())
}
