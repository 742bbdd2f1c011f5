package biz

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/logger"

	"github.com/studyforge/bookqa/internal/bookqa/metrics"
	"github.com/studyforge/bookqa/internal/bookqa/store"
)

// RetrieverConfig tunes vector retrieval.
type RetrieverConfig struct {
	// TopK is the number of candidates to pull from the vector store.
	TopK int
}

// Retriever embeds the query with the active strategy and searches that
// strategy's collection. It applies no score threshold: confidence gating
// happens once, in the grounding agent.
type Retriever struct {
	store      store.VectorStore
	strategies *EmbeddingSet
	config     *RetrieverConfig
}

// NewRetriever creates a retriever.
func NewRetriever(vectorStore store.VectorStore, strategies *EmbeddingSet, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:      vectorStore,
		strategies: strategies,
		config:     config,
	}
}

// Retrieve returns the TopK nearest chunks for the query, scoped to one
// chapter when chapter > 0. Results are ordered by descending score; ties
// break by ascending chapter then paragraph so ordering is deterministic.
//
// When the active strategy's provider fails to embed the query, the
// request degrades to the fallback strategy for this one call; the
// active strategy is not switched.
func (r *Retriever) Retrieve(ctx context.Context, query string, chapter int) ([]*store.SearchResult, error) {
	strategy, err := r.strategies.Active()
	if err != nil {
		return nil, err
	}

	embedding, err := strategy.EmbedQuery(ctx, query)
	if err != nil {
		if strategy.Name == StrategyFallback {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		fallback, fbErr := r.strategies.Get(StrategyFallback)
		if fbErr != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		metrics.Get().RecordProviderError()
		logger.Warnw("primary embedding provider failed, degrading to fallback strategy",
			"strategy", strategy.Name, "fallback", fallback.Name, "error", err)
		strategy = fallback
		embedding, err = strategy.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query with fallback: %w", err)
		}
	}

	results, err := r.store.Search(ctx, strategy.Collection, embedding, r.config.TopK, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", strategy.Collection, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.ChapterNumber != results[j].Chunk.ChapterNumber {
			return results[i].Chunk.ChapterNumber < results[j].Chunk.ChapterNumber
		}
		return results[i].Chunk.ParagraphIndex < results[j].Chunk.ParagraphIndex
	})
	return results, nil
}
