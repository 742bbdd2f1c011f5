package biz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/bookqa/store"
)

func rerankInput(n int) []*store.SearchResult {
	results := make([]*store.SearchResult, n)
	for i := range results {
		results[i] = &store.SearchResult{
			Chunk: store.Chunk{ID: string(rune('a' + i)), ParagraphIndex: i},
			Score: 1.0 - float64(i)*0.05,
		}
	}
	return results
}

func TestRerankReordersAndKeepsTop(t *testing.T) {
	provider := &fakeRerank{scores: []float64{-2.0, 4.0, 1.0, 0.5, -1.0, 3.0, -3.0}}
	r := biz.NewReranker(provider, &biz.RerankerConfig{Keep: 5})

	results, degraded := r.Rerank(context.Background(), "q", rerankInput(7))
	assert.False(t, degraded)
	require.Len(t, results, 5)

	// Highest cross-encoder score wins, normalized to 1.
	assert.Equal(t, 1, results[0].Chunk.ParagraphIndex)
	assert.Equal(t, 1.0, results[0].RerankScore)
	assert.Equal(t, 5, results[1].Chunk.ParagraphIndex)

	// Vector similarities ride along untouched.
	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, 0.75, results[1].Score)

	// Rerank scores are min-max normalized into [0, 1].
	for _, res := range results {
		assert.GreaterOrEqual(t, res.RerankScore, 0.0)
		assert.LessOrEqual(t, res.RerankScore, 1.0)
	}
}

func TestRerankKeepsVectorScoresForWeakCandidates(t *testing.T) {
	// Low-similarity candidates stay low-similarity after a successful
	// rerank; normalization must not inflate them past the confidence
	// threshold downstream.
	input := []*store.SearchResult{
		{Chunk: store.Chunk{ID: "a"}, Score: 0.21},
		{Chunk: store.Chunk{ID: "b"}, Score: 0.18},
		{Chunk: store.Chunk{ID: "c"}, Score: 0.12},
	}
	provider := &fakeRerank{scores: []float64{0.05, 0.12, 0.07}}
	r := biz.NewReranker(provider, &biz.RerankerConfig{Keep: 3})

	results, degraded := r.Rerank(context.Background(), "what is the weather today", input)
	assert.False(t, degraded)
	require.Len(t, results, 3)

	assert.Equal(t, "b", results[0].Chunk.ID)
	assert.Equal(t, 1.0, results[0].RerankScore)
	for _, res := range results {
		assert.Less(t, res.Score, 0.3)
	}
}

func TestRerankDegradesOnProviderError(t *testing.T) {
	provider := &fakeRerank{err: errors.New("model loading")}
	r := biz.NewReranker(provider, &biz.RerankerConfig{Keep: 5})

	input := rerankInput(7)
	results, degraded := r.Rerank(context.Background(), "q", input)
	assert.True(t, degraded)
	require.Len(t, results, 5)

	// Vector order preserved, retrieval scores untouched.
	assert.Same(t, input[0], results[0])
	assert.Equal(t, 1.0, results[0].Score)
}

func TestRerankDegradesOnScoreCountMismatch(t *testing.T) {
	provider := &fakeRerank{scores: []float64{0.5}}
	r := biz.NewReranker(provider, &biz.RerankerConfig{Keep: 5})

	results, degraded := r.Rerank(context.Background(), "q", rerankInput(3))
	assert.True(t, degraded)
	assert.Len(t, results, 3)
}

func TestRerankEmptyInput(t *testing.T) {
	r := biz.NewReranker(&fakeRerank{}, &biz.RerankerConfig{Keep: 5})
	results, degraded := r.Rerank(context.Background(), "q", nil)
	assert.Empty(t, results)
	assert.False(t, degraded)
}

func TestRerankFewerResultsThanKeep(t *testing.T) {
	provider := &fakeRerank{scores: []float64{1.0, 2.0}}
	r := biz.NewReranker(provider, &biz.RerankerConfig{Keep: 5})

	results, degraded := r.Rerank(context.Background(), "q", rerankInput(2))
	assert.False(t, degraded)
	assert.Len(t, results, 2)
}
