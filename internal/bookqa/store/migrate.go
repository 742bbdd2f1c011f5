package store

import (
	"gorm.io/gorm"

	"github.com/studyforge/bookqa/internal/model"
)

// Migrate creates or updates the relational schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Chapter{},
		&model.Paragraph{},
		&model.Session{},
		&model.Turn{},
		&model.TransformContent{},
	)
}
