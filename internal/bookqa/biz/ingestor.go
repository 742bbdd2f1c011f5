package biz

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/model"
	"github.com/studyforge/bookqa/internal/pkg/textutil"
)

// IngestorConfig tunes the ingestion pipeline.
type IngestorConfig struct {
	Chunker *ChunkerConfig
	// BatchSize is the number of chunks embedded and upserted per batch.
	BatchSize int
	// MaxAttempts and RetryBackoff govern per-batch retries; attempt i
	// waits i*RetryBackoff before retrying.
	MaxAttempts  int
	RetryBackoff time.Duration
	// Workers bounds concurrent embedding batches.
	Workers int
	// HNSWM and HNSWEfConstruction are applied when a collection is created.
	HNSWM              int
	HNSWEfConstruction int
}

// DefaultIngestorConfig returns the standard ingestion parameters.
func DefaultIngestorConfig() *IngestorConfig {
	return &IngestorConfig{
		Chunker:            DefaultChunkerConfig(),
		BatchSize:          100,
		MaxAttempts:        3,
		RetryBackoff:       time.Second,
		Workers:            4,
		HNSWM:              16,
		HNSWEfConstruction: 100,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	ChaptersProcessed     int     `json:"chapters_processed"`
	ChunksCreated         int     `json:"chunks_created"`
	PointsUpserted        int     `json:"points_upserted"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Ingestor loads the book Markdown, chunks it, mirrors chapters into the
// relational store and upserts embedded chunks into the strategy's vector
// collection. Chunk ids are deterministic, so re-ingestion replaces points
// in place.
type Ingestor struct {
	vectorStore store.VectorStore
	books       *store.BookStore
	strategies  *EmbeddingSet
	chunker     *Chunker
	config      *IngestorConfig
}

// NewIngestor creates an ingestor.
func NewIngestor(vectorStore store.VectorStore, books *store.BookStore, strategies *EmbeddingSet, config *IngestorConfig) *Ingestor {
	if config == nil {
		config = DefaultIngestorConfig()
	}
	return &Ingestor{
		vectorStore: vectorStore,
		books:       books,
		strategies:  strategies,
		chunker:     NewChunker(config.Chunker),
		config:      config,
	}
}

// IngestFile ingests the book at path under the named strategy (the active
// strategy when name is empty).
func (ing *Ingestor) IngestFile(ctx context.Context, path, strategyName string) (*IngestResult, error) {
	start := time.Now()

	strategy, err := ing.strategies.Get(strategyName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book file: %w", err)
	}

	chapters, err := ParseBook(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse book: %w", err)
	}

	if err := ing.vectorStore.EnsureCollection(ctx, &store.CollectionConfig{
		Name:               strategy.Collection,
		Description:        fmt.Sprintf("book chunks, %s embedding strategy", strategy.Name),
		Dimension:          strategy.Dimension,
		HNSWM:              ing.config.HNSWM,
		HNSWEfConstruction: ing.config.HNSWEfConstruction,
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", strategy.Collection, err)
	}

	var allChunks []*store.Chunk
	for _, chapter := range chapters {
		chunks := ing.chunkChapter(chapter)
		if err := ing.mirrorChapter(ctx, chapter, chunks); err != nil {
			return nil, err
		}
		allChunks = append(allChunks, chunks...)
		logger.Infow("chapter chunked",
			"chapter", chapter.Number, "title", chapter.Title, "chunks", len(chunks))
	}

	upserted, err := ing.embedAndUpsert(ctx, strategy, allChunks)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		ChaptersProcessed:     len(chapters),
		ChunksCreated:         len(allChunks),
		PointsUpserted:        upserted,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}
	logger.Infow("book ingested",
		"strategy", strategy.Name,
		"chapters", result.ChaptersProcessed,
		"chunks", result.ChunksCreated,
		"points", result.PointsUpserted,
		"seconds", result.ProcessingTimeSeconds)
	return result, nil
}

// chunkChapter chunks every section of a chapter, numbering chunks with a
// sequential paragraph index across the whole chapter.
func (ing *Ingestor) chunkChapter(chapter *ParsedChapter) []*store.Chunk {
	var chunks []*store.Chunk
	index := 0
	for _, section := range chapter.Sections {
		for _, content := range ing.chunker.Split(section.Content) {
			chunks = append(chunks, &store.Chunk{
				ID:             fmt.Sprintf("ch%d_p%d", chapter.Number, index),
				ChapterNumber:  chapter.Number,
				ChapterTitle:   chapter.FullTitle(),
				SectionName:    section.Name,
				ParagraphIndex: index,
				Content:        content,
				TokenCount:     textutil.EstimateTokens(content),
				CharCount:      len([]rune(content)),
			})
			index++
		}
	}
	return chunks
}

func (ing *Ingestor) mirrorChapter(ctx context.Context, chapter *ParsedChapter, chunks []*store.Chunk) error {
	row := &model.Chapter{
		ChapterNumber: chapter.Number,
		Title:         chapter.FullTitle(),
		WordCount:     chapter.WordCount(),
	}
	paragraphs := make([]*model.Paragraph, len(chunks))
	for i, chunk := range chunks {
		paragraphs[i] = &model.Paragraph{
			ParagraphIndex: chunk.ParagraphIndex,
			SectionName:    chunk.SectionName,
			Content:        chunk.Content,
			TokenCount:     chunk.TokenCount,
			CharCount:      chunk.CharCount,
		}
	}
	if err := ing.books.UpsertChapter(ctx, row, paragraphs); err != nil {
		return fmt.Errorf("failed to mirror chapter %d: %w", chapter.Number, err)
	}
	return nil
}

// embedAndUpsert embeds chunks in batches on a worker pool and upserts each
// batch, retrying transient failures with linear backoff.
func (ing *Ingestor) embedAndUpsert(ctx context.Context, strategy *EmbeddingStrategy, chunks []*store.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(ing.config.Workers)
	if err != nil {
		return 0, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		upserted int
		firstErr error
	)

	for begin := 0; begin < len(chunks); begin += ing.config.BatchSize {
		end := begin + ing.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[begin:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ing.processBatch(ctx, strategy, batch); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			upserted += len(batch)
			mu.Unlock()
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to submit ingest batch: %w", err)
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return upserted, firstErr
	}
	return upserted, nil
}

func (ing *Ingestor) processBatch(ctx context.Context, strategy *EmbeddingStrategy, batch []*store.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	var lastErr error
	for attempt := 1; attempt <= ing.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * ing.config.RetryBackoff):
			}
		}

		embeddings, err := strategy.EmbedBatch(ctx, texts)
		if err != nil {
			lastErr = err
			logger.Warnw("embedding batch failed",
				"attempt", attempt, "size", len(batch), "error", err)
			continue
		}
		for i, chunk := range batch {
			chunk.Embedding = embeddings[i]
		}

		if err := ing.vectorStore.Upsert(ctx, strategy.Collection, batch); err != nil {
			lastErr = err
			logger.Warnw("chunk upsert failed",
				"attempt", attempt, "size", len(batch), "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("batch failed after %d attempts: %w", ing.config.MaxAttempts, lastErr)
}
