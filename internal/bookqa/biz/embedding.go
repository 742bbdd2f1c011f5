package biz

import (
	"context"
	"fmt"

	"github.com/studyforge/bookqa/pkg/llm"
)

// Embedding strategy names. The index and every query against it must use
// the same strategy; vectors from different strategies never share a
// collection.
const (
	StrategyPrimary  = "primary"
	StrategyFallback = "fallback"
)

// EmbeddingStrategy binds a strategy name to its provider, dimension and
// Milvus collection.
type EmbeddingStrategy struct {
	Name       string
	Provider   llm.EmbeddingProvider
	Dimension  int
	Collection string
}

// EmbedQuery embeds one text and verifies the vector dimension matches the
// strategy, so a misconfigured provider cannot poison the collection.
func (s *EmbeddingStrategy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.Provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with strategy %s: %w", s.Name, err)
	}
	if len(vec) != s.Dimension {
		return nil, fmt.Errorf("strategy %s produced %d-dim vector, want %d", s.Name, len(vec), s.Dimension)
	}
	return vec, nil
}

// EmbedBatch embeds a batch of texts with the same dimension check.
func (s *EmbeddingStrategy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.Provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch with strategy %s: %w", s.Name, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("strategy %s returned %d vectors for %d texts", s.Name, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if len(vec) != s.Dimension {
			return nil, fmt.Errorf("strategy %s produced %d-dim vector at %d, want %d", s.Name, len(vec), i, s.Dimension)
		}
	}
	return vecs, nil
}

// EmbeddingSet holds the configured strategies and the active one used for
// query-time embedding.
type EmbeddingSet struct {
	strategies map[string]*EmbeddingStrategy
	active     string
}

// NewEmbeddingSet creates a strategy set with the given active strategy.
func NewEmbeddingSet(active string) *EmbeddingSet {
	return &EmbeddingSet{
		strategies: make(map[string]*EmbeddingStrategy),
		active:     active,
	}
}

// Add registers a strategy.
func (e *EmbeddingSet) Add(s *EmbeddingStrategy) {
	e.strategies[s.Name] = s
}

// Get returns the named strategy, or the active one when name is empty.
func (e *EmbeddingSet) Get(name string) (*EmbeddingStrategy, error) {
	if name == "" {
		name = e.active
	}
	s, ok := e.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown embedding strategy %q", name)
	}
	return s, nil
}

// Active returns the strategy used for query embedding.
func (e *EmbeddingSet) Active() (*EmbeddingStrategy, error) {
	return e.Get(e.active)
}
