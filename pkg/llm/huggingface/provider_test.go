package huggingface_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/pkg/llm/huggingface"
)

func newTestProvider(url string) *huggingface.Provider {
	cfg := huggingface.DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "test-token"
	cfg.MaxRetries = 0
	return huggingface.NewProviderWithConfig(cfg)
}

func TestRerankNestedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "text_pair")
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[{"label":"LABEL_1","score":0.92}],[{"label":"LABEL_1","score":0.31}]]`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	scores, err := p.Rerank(context.Background(), "what is a humanoid robot",
		[]string{"a humanoid robot has a human-like body", "pasta recipes"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.92, scores[0], 1e-9)
	assert.InDelta(t, 0.31, scores[1], 1e-9)
}

func TestRerankFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"score":0.7},{"score":0.2},{"score":0.5}]`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	scores, err := p.Rerank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.2, 0.5}, scores)
}

func TestRerankEmptyDocuments(t *testing.T) {
	p := newTestProvider("http://unused")
	scores, err := p.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestDefaultConfigRetriesOnce(t *testing.T) {
	assert.Equal(t, 1, huggingface.DefaultConfig().MaxRetries)

	// A provider with the default config retries a failed request exactly
	// once before surfacing the error.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := huggingface.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-token"
	p := huggingface.NewProviderWithConfig(cfg)

	_, err := p.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRerankErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad input"}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
