package biz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/bookqa/store"
)

func newTestStrategies(embedder *fakeEmbedder) *biz.EmbeddingSet {
	set := biz.NewEmbeddingSet(biz.StrategyPrimary)
	set.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyPrimary,
		Provider:   embedder,
		Dimension:  embedder.dim,
		Collection: "physical_ai_robotics_book",
	})
	return set
}

func TestRetrieveOrdersByScoreWithTieBreak(t *testing.T) {
	vs := newFakeVectorStore(
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 4, ParagraphIndex: 2}, Score: 0.8},
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 2, ParagraphIndex: 9}, Score: 0.8},
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 2, ParagraphIndex: 3}, Score: 0.8},
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 1, ParagraphIndex: 0}, Score: 0.95},
	)
	r := biz.NewRetriever(vs, newTestStrategies(&fakeEmbedder{dim: 8}), &biz.RetrieverConfig{TopK: 10})

	results, err := r.Retrieve(context.Background(), "what is torque", 0)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, 2, results[1].Chunk.ChapterNumber)
	assert.Equal(t, 3, results[1].Chunk.ParagraphIndex)
	assert.Equal(t, 9, results[2].Chunk.ParagraphIndex)
	assert.Equal(t, 4, results[3].Chunk.ChapterNumber)
}

func TestRetrievePassesChapterFilter(t *testing.T) {
	vs := newFakeVectorStore()
	r := biz.NewRetriever(vs, newTestStrategies(&fakeEmbedder{dim: 8}), &biz.RetrieverConfig{TopK: 10})

	_, err := r.Retrieve(context.Background(), "sensors", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, vs.lastChapter)
	assert.Equal(t, 10, vs.lastTopK)
	assert.Equal(t, "physical_ai_robotics_book", vs.lastCollection)
}

func TestRetrieveAppliesNoThreshold(t *testing.T) {
	vs := newFakeVectorStore(
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 1}, Score: 0.01},
	)
	r := biz.NewRetriever(vs, newTestStrategies(&fakeEmbedder{dim: 8}), &biz.RetrieverConfig{TopK: 10})

	results, err := r.Retrieve(context.Background(), "unrelated query", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieveDegradesToFallbackStrategy(t *testing.T) {
	primary := &fakeEmbedder{dim: 8, err: assert.AnError}
	local := &fakeEmbedder{dim: 4}
	set := newTestStrategies(primary)
	set.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyFallback,
		Provider:   local,
		Dimension:  local.dim,
		Collection: "physical_ai_robotics_book_local",
	})
	vs := newFakeVectorStore(
		&store.SearchResult{Chunk: store.Chunk{ChapterNumber: 1}, Score: 0.8},
	)
	r := biz.NewRetriever(vs, set, &biz.RetrieverConfig{TopK: 10})

	results, err := r.Retrieve(context.Background(), "what is torque", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// The degraded request embeds with the local provider and searches
	// its collection; the active strategy stays primary.
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, "physical_ai_robotics_book_local", vs.lastCollection)
	active, err := set.Active()
	require.NoError(t, err)
	assert.Equal(t, biz.StrategyPrimary, active.Name)
}

func TestRetrieveErrorsWhenNoFallbackRegistered(t *testing.T) {
	r := biz.NewRetriever(newFakeVectorStore(), newTestStrategies(&fakeEmbedder{dim: 8, err: assert.AnError}), &biz.RetrieverConfig{TopK: 10})

	_, err := r.Retrieve(context.Background(), "query", 0)
	assert.ErrorContains(t, err, "failed to embed query")
}

func TestRetrieveErrorsWhenFallbackAlsoFails(t *testing.T) {
	set := newTestStrategies(&fakeEmbedder{dim: 8, err: assert.AnError})
	set.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyFallback,
		Provider:   &fakeEmbedder{dim: 4, err: assert.AnError},
		Dimension:  4,
		Collection: "physical_ai_robotics_book_local",
	})
	r := biz.NewRetriever(newFakeVectorStore(), set, &biz.RetrieverConfig{TopK: 10})

	_, err := r.Retrieve(context.Background(), "query", 0)
	assert.ErrorContains(t, err, "fallback")
}

func TestRetrieveRejectsWrongDimension(t *testing.T) {
	set := biz.NewEmbeddingSet(biz.StrategyPrimary)
	set.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyPrimary,
		Provider:   &fakeEmbedder{dim: 8},
		Dimension:  1536,
		Collection: "physical_ai_robotics_book",
	})
	r := biz.NewRetriever(newFakeVectorStore(), set, &biz.RetrieverConfig{TopK: 10})

	_, err := r.Retrieve(context.Background(), "query", 0)
	assert.ErrorContains(t, err, "1536")
}
