package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/studyforge/bookqa/pkg/component/milvus"
)

const (
	chunkPKField = "chunk_id"

	fieldChapterNumber  = "chapter_number"
	fieldChapterTitle   = "chapter_title"
	fieldSectionName    = "section_name"
	fieldParagraphIndex = "paragraph_index"
	fieldContent        = "content"
	fieldTokenCount     = "token_count"
	fieldCharCount      = "char_count"
)

var chunkOutputFields = []string{
	fieldChapterNumber, fieldChapterTitle, fieldSectionName,
	fieldParagraphIndex, fieldContent, fieldTokenCount, fieldCharCount,
}

// MilvusStore implements VectorStore over a Milvus deployment.
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a Milvus-backed vector store.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection creates and loads the chunk collection if missing.
func (s *MilvusStore) EnsureCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		PKField:     chunkPKField,
		PKMaxLen:    64,
		MetaFields: []milvus.MetaField{
			{Name: fieldChapterNumber, DataType: entity.FieldTypeInt64},
			{Name: fieldChapterTitle, DataType: entity.FieldTypeVarChar, MaxLen: 500},
			{Name: fieldSectionName, DataType: entity.FieldTypeVarChar, MaxLen: 500},
			{Name: fieldParagraphIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldTokenCount, DataType: entity.FieldTypeInt64},
			{Name: fieldCharCount, DataType: entity.FieldTypeInt64},
		},
		HNSWM:              config.HNSWM,
		HNSWEfConstruction: config.HNSWEfConstruction,
	}
	return s.client.EnsureCollection(ctx, schema)
}

// Upsert writes chunks keyed by chunk id. Re-ingesting the book overwrites
// the existing points instead of duplicating them.
func (s *MilvusStore) Upsert(ctx context.Context, collection string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	data := &milvus.UpsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			fieldChapterNumber:  make([]any, len(chunks)),
			fieldChapterTitle:   make([]any, len(chunks)),
			fieldSectionName:    make([]any, len(chunks)),
			fieldParagraphIndex: make([]any, len(chunks)),
			fieldContent:        make([]any, len(chunks)),
			fieldTokenCount:     make([]any, len(chunks)),
			fieldCharCount:      make([]any, len(chunks)),
		},
	}
	for i, chunk := range chunks {
		data.IDs[i] = chunk.ID
		data.Embeddings[i] = chunk.Embedding
		data.Metadata[fieldChapterNumber][i] = int64(chunk.ChapterNumber)
		data.Metadata[fieldChapterTitle][i] = chunk.ChapterTitle
		data.Metadata[fieldSectionName][i] = chunk.SectionName
		data.Metadata[fieldParagraphIndex][i] = int64(chunk.ParagraphIndex)
		data.Metadata[fieldContent][i] = chunk.Content
		data.Metadata[fieldTokenCount][i] = int64(chunk.TokenCount)
		data.Metadata[fieldCharCount][i] = int64(chunk.CharCount)
	}

	if err := s.client.Upsert(ctx, collection, chunkPKField, data); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// Search runs a similarity search, optionally restricted to one chapter via
// a scalar filter expression.
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK, chapter int) ([]*SearchResult, error) {
	filter := ""
	if chapter > 0 {
		filter = fmt.Sprintf("%s == %d", fieldChapterNumber, chapter)
	}

	hits, err := s.client.Search(ctx, collection, embedding, topK, filter, chunkOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &SearchResult{
			Chunk: Chunk{
				ID:             hit.ID,
				ChapterNumber:  int(metaInt64(hit.Metadata, fieldChapterNumber)),
				ChapterTitle:   metaString(hit.Metadata, fieldChapterTitle),
				SectionName:    metaString(hit.Metadata, fieldSectionName),
				ParagraphIndex: int(metaInt64(hit.Metadata, fieldParagraphIndex)),
				Content:        metaString(hit.Metadata, fieldContent),
				TokenCount:     int(metaInt64(hit.Metadata, fieldTokenCount)),
				CharCount:      int(metaInt64(hit.Metadata, fieldCharCount)),
			},
			Score: float64(hit.Score),
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.CollectionCount(ctx, collection)
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt64(m map[string]any, key string) int64 {
	if v, ok := m[key].(int64); ok {
		return v
	}
	return 0
}

var _ VectorStore = (*MilvusStore)(nil)
