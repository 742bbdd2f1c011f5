// Package model defines the persisted entities and shared domain types.
package model

import "time"

// Chapter mirrors one book chapter in PostgreSQL. The vector store holds
// the chunk payloads; this mirror backs history display and the transform
// services, which need full chapter text without a vector roundtrip.
type Chapter struct {
	ID            uint      `gorm:"primaryKey"`
	ChapterNumber int       `gorm:"uniqueIndex;not null"`
	Title         string    `gorm:"size:500;not null"`
	WordCount     int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName maps Chapter to its table.
func (Chapter) TableName() string { return "chapters" }

// Paragraph is one chunk-sized slice of a chapter, keyed by its position
// within the chapter. ParagraphIndex matches the paragraph_index stored in
// the vector collections, so citations can be resolved back to text.
type Paragraph struct {
	ID             uint      `gorm:"primaryKey"`
	ChapterID      uint      `gorm:"index;uniqueIndex:idx_chapter_paragraph;not null"`
	ParagraphIndex int       `gorm:"uniqueIndex:idx_chapter_paragraph;not null"`
	SectionName    string    `gorm:"size:500"`
	Content        string    `gorm:"type:text;not null"`
	TokenCount     int       `gorm:"not null;default:0"`
	CharCount      int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName maps Paragraph to its table.
func (Paragraph) TableName() string { return "paragraphs" }
