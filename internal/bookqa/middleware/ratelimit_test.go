package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/studyforge/bookqa/internal/bookqa/middleware"
)

func newLimitedRouter(perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := middleware.NewRateLimiter(nil)
	r.POST("/chat", rl.Limit("chat", perMinute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doChat(r *gin.Engine, caller string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	if caller != "" {
		req.Header.Set(middleware.CallerIDHeader, caller)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLimitAllowsWithinBudget(t *testing.T) {
	r := newLimitedRouter(3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doChat(r, "alice").Code)
	}
}

func TestLimitRejectsOverBudget(t *testing.T) {
	r := newLimitedRouter(2)
	doChat(r, "bob")
	doChat(r, "bob")

	w := doChat(r, "bob")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")
}

func TestLimitIsPerCaller(t *testing.T) {
	r := newLimitedRouter(1)
	assert.Equal(t, http.StatusOK, doChat(r, "carol").Code)
	assert.Equal(t, http.StatusTooManyRequests, doChat(r, "carol").Code)
	assert.Equal(t, http.StatusOK, doChat(r, "dave").Code)
}
