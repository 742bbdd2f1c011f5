package store

import (
	"context"
)

// Chunk is one indexable slice of the book, carrying the payload that the
// vector store persists alongside the embedding.
type Chunk struct {
	// ID is the deterministic chunk id ("ch<chapter>_p<paragraph>").
	ID string
	// ChapterNumber is the 1-based chapter.
	ChapterNumber int
	// ChapterTitle is the formatted title ("Chapter N: Title").
	ChapterTitle string
	// SectionName is the section heading ("N.M Title"), empty for preamble.
	SectionName string
	// ParagraphIndex is the chunk position within the chapter, from 0.
	ParagraphIndex int
	// Content is the chunk text.
	Content string
	// TokenCount is the estimated token count of Content.
	TokenCount int
	// CharCount is the rune count of Content.
	CharCount int
	// Embedding is the chunk vector under the active strategy.
	Embedding []float32
}

// SearchResult is one similarity hit with its payload.
type SearchResult struct {
	Chunk Chunk
	// Score is the cosine similarity in [0, 1] (higher is closer). It is
	// the confidence signal and survives reranking unchanged.
	Score float64
	// RerankScore is the normalized cross-encoder relevance, set only
	// after reranking. It orders results; it never gates generation.
	RerankScore float64
}

// CollectionConfig describes one strategy collection.
type CollectionConfig struct {
	// Name is the collection name.
	Name string
	// Description is a human-readable note stored with the schema.
	Description string
	// Dimension is the embedding dimension; upserts with any other
	// dimension are rejected so strategies can never mix.
	Dimension int
	// HNSWM and HNSWEfConstruction tune the vector index.
	HNSWM              int
	HNSWEfConstruction int
}

// VectorStore is the vector database abstraction used by retrieval and
// ingestion.
type VectorStore interface {
	// EnsureCollection creates and loads the collection if missing.
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// Upsert writes chunks keyed by their ids; re-ingesting the same ids
	// replaces the stored points.
	Upsert(ctx context.Context, collection string, chunks []*Chunk) error

	// Search returns the topK nearest chunks. chapter > 0 restricts the
	// search to that chapter.
	Search(ctx context.Context, collection string, embedding []float32, topK, chapter int) ([]*SearchResult, error)

	// Count returns the number of stored points.
	Count(ctx context.Context, collection string) (int64, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}
