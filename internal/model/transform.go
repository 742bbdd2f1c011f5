package model

import "time"

// Transform kinds.
const (
	TransformRewrite     = "rewrite"
	TransformTranslation = "translation"
)

// Rewrite difficulty variants.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// TransformContent is one generated chapter variant. Rows are immutable:
// the unique key plus insert-if-absent gives at-most-once generation per
// (chapter, kind, variant).
type TransformContent struct {
	ID            uint      `gorm:"primaryKey"`
	ChapterNumber int       `gorm:"uniqueIndex:idx_transform_key;not null"`
	Kind          string    `gorm:"uniqueIndex:idx_transform_key;size:16;not null"`
	Variant       string    `gorm:"uniqueIndex:idx_transform_key;size:32;not null"`
	Content       string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName maps TransformContent to its table.
func (TransformContent) TableName() string { return "transform_contents" }
