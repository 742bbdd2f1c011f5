package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performJSON(handler gin.HandlerFunc, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.Handle(method, path, handler)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatRejectsInvalidBody(t *testing.T) {
	h := NewChatHandler(nil)

	w := performJSON(h.Chat, http.MethodPost, "/v1/chat", "{not json", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	h := NewChatHandler(nil)

	w := performJSON(h.Chat, http.MethodPost, "/v1/chat", `{"query":"   "}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_query")
}

func TestChatRejectsOverlongQuery(t *testing.T) {
	h := NewChatHandler(nil)
	query := strings.Repeat("q", maxQueryLength+1)

	w := performJSON(h.Chat, http.MethodPost, "/v1/chat", `{"query":"`+query+`"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_query")
}

func TestChatRejectsChapterOutOfRange(t *testing.T) {
	h := NewChatHandler(nil)

	for _, chapter := range []string{"-1", "9", "100"} {
		w := performJSON(h.Chat, http.MethodPost, "/v1/chat", `{"query":"what is a robot?","chapter":`+chapter+`}`, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code, "chapter %s", chapter)
		assert.Contains(t, w.Body.String(), "invalid_chapter")
	}
}

func TestPersonalizeRequiresGatewayHeader(t *testing.T) {
	h := NewTransformHandler(nil)

	w := performJSON(h.Personalize, http.MethodPost, "/v1/personalize",
		`{"chapter_id":1,"difficulty_level":"beginner"}`, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "personalization_not_allowed")
}

func TestPersonalizeRejectsWrongHeaderValue(t *testing.T) {
	h := NewTransformHandler(nil)

	w := performJSON(h.Personalize, http.MethodPost, "/v1/personalize",
		`{"chapter_id":1,"difficulty_level":"beginner"}`,
		map[string]string{PersonalizationHeader: "yes"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPersonalizeRejectsUnknownDifficulty(t *testing.T) {
	h := NewTransformHandler(nil)

	w := performJSON(h.Personalize, http.MethodPost, "/v1/personalize",
		`{"chapter_id":1,"difficulty_level":"expert"}`,
		map[string]string{PersonalizationHeader: "true"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_difficulty")
}

func TestPersonalizeRejectsChapterOutOfRange(t *testing.T) {
	h := NewTransformHandler(nil)

	w := performJSON(h.Personalize, http.MethodPost, "/v1/personalize",
		`{"chapter_id":0,"difficulty_level":"beginner"}`,
		map[string]string{PersonalizationHeader: "true"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_chapter")
}

func TestTranslateRejectsChapterOutOfRange(t *testing.T) {
	h := NewTransformHandler(nil)

	w := performJSON(h.Translate, http.MethodPost, "/v1/translate", `{"chapter_id":9}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_chapter")
}

func TestIngestRequiresPath(t *testing.T) {
	h := NewIngestHandler(nil)

	w := performJSON(h.Ingest, http.MethodPost, "/v1/admin/book", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestIngestRejectsUnknownStrategy(t *testing.T) {
	h := NewIngestHandler(nil)

	w := performJSON(h.Ingest, http.MethodPost, "/v1/admin/book",
		`{"path":"/data/book.md","strategy":"hybrid"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_strategy")
}

func TestQueryIntDefaults(t *testing.T) {
	engine := gin.New()
	var limit, offset int
	engine.GET("/h", func(c *gin.Context) {
		limit = queryInt(c, "limit", 50)
		offset = queryInt(c, "offset", 0)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/h?limit=abc&offset=-3", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}
