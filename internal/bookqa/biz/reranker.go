package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"

	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/pkg/textutil"
	"github.com/studyforge/bookqa/pkg/llm"
)

// RerankerConfig tunes cross-encoder reranking.
type RerankerConfig struct {
	// Keep is the number of chunks passed on to the grounding agent.
	Keep int
}

// Reranker reorders retrieval candidates with a cross-encoder and keeps
// the best few. Cross-encoder logits only order the results (min-max
// normalized into RerankScore for reporting); each result keeps its
// vector similarity in Score, which is what the confidence gate reads.
// Per-request normalization would pin the top score to 1.0 and make the
// gate unreachable, so it must never feed the gate.
type Reranker struct {
	provider llm.RerankProvider
	config   *RerankerConfig
}

// NewReranker creates a reranker.
func NewReranker(provider llm.RerankProvider, config *RerankerConfig) *Reranker {
	return &Reranker{provider: provider, config: config}
}

// Rerank reorders results by cross-encoder relevance and truncates to Keep.
// On provider failure it degrades to vector-order truncation; the second
// return reports whether that happened.
func (r *Reranker) Rerank(ctx context.Context, query string, results []*store.SearchResult) ([]*store.SearchResult, bool) {
	if len(results) == 0 {
		return results, false
	}

	keep := r.config.Keep
	if keep <= 0 || keep > len(results) {
		keep = len(results)
	}

	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Chunk.Content
	}

	scores, err := r.provider.Rerank(ctx, query, docs)
	if err != nil || len(scores) != len(results) {
		if err != nil {
			logger.Warnw("reranker unavailable, keeping vector order",
				"provider", r.provider.Name(), "error", err)
		} else {
			logger.Warnw("reranker returned mismatched score count, keeping vector order",
				"provider", r.provider.Name(), "got", len(scores), "want", len(results))
		}
		return results[:keep], true
	}

	normalized := textutil.NormalizeScores(scores)
	reranked := make([]*store.SearchResult, len(results))
	for i, res := range results {
		reranked[i] = &store.SearchResult{
			Chunk:       res.Chunk,
			Score:       res.Score,
			RerankScore: normalized[i],
		}
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	return reranked[:keep], false
}
