package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyforge/bookqa/internal/model"
)

// ErrChapterNotFound means the requested chapter has not been ingested.
var ErrChapterNotFound = errors.New("chapter not found")

// BookStore mirrors the ingested book in the relational database. The
// mirror serves chapter-level reads (transforms, citation resolution)
// without a vector store roundtrip.
type BookStore struct {
	db *gorm.DB
}

// NewBookStore creates a book store.
func NewBookStore(db *gorm.DB) *BookStore {
	return &BookStore{db: db}
}

// UpsertChapter inserts or updates the chapter row keyed by chapter number
// and replaces its paragraphs. Re-ingestion is idempotent.
func (s *BookStore) UpsertChapter(ctx context.Context, chapter *model.Chapter, paragraphs []*model.Paragraph) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chapter_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "word_count"}),
		}).Create(chapter).Error; err != nil {
			return fmt.Errorf("failed to upsert chapter %d: %w", chapter.ChapterNumber, err)
		}

		var stored model.Chapter
		if err := tx.First(&stored, "chapter_number = ?", chapter.ChapterNumber).Error; err != nil {
			return fmt.Errorf("failed to reload chapter %d: %w", chapter.ChapterNumber, err)
		}
		chapter.ID = stored.ID

		if err := tx.Where("chapter_id = ?", stored.ID).Delete(&model.Paragraph{}).Error; err != nil {
			return fmt.Errorf("failed to clear paragraphs for chapter %d: %w", chapter.ChapterNumber, err)
		}
		for _, p := range paragraphs {
			p.ID = 0
			p.ChapterID = stored.ID
		}
		if len(paragraphs) > 0 {
			if err := tx.CreateInBatches(paragraphs, 200).Error; err != nil {
				return fmt.Errorf("failed to store paragraphs for chapter %d: %w", chapter.ChapterNumber, err)
			}
		}
		return nil
	})
}

// GetChapter loads one chapter by number.
func (s *BookStore) GetChapter(ctx context.Context, number int) (*model.Chapter, error) {
	var chapter model.Chapter
	err := s.db.WithContext(ctx).First(&chapter, "chapter_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chapter %d: %w", number, err)
	}
	return &chapter, nil
}

// ListChapters returns all chapters ordered by number.
func (s *BookStore) ListChapters(ctx context.Context) ([]*model.Chapter, error) {
	var chapters []*model.Chapter
	if err := s.db.WithContext(ctx).Order("chapter_number ASC").Find(&chapters).Error; err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// ChapterText assembles the full chapter text from its stored paragraphs.
func (s *BookStore) ChapterText(ctx context.Context, number int) (*model.Chapter, string, error) {
	chapter, err := s.GetChapter(ctx, number)
	if err != nil {
		return nil, "", err
	}

	var paragraphs []*model.Paragraph
	if err := s.db.WithContext(ctx).
		Where("chapter_id = ?", chapter.ID).
		Order("paragraph_index ASC").
		Find(&paragraphs).Error; err != nil {
		return nil, "", fmt.Errorf("failed to load paragraphs for chapter %d: %w", number, err)
	}

	var b strings.Builder
	for i, p := range paragraphs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Content)
	}
	return chapter, b.String(), nil
}
