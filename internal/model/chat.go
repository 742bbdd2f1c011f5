package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/studyforge/bookqa/pkg/utils/json"
)

// Citation points a reader back into the book. Section and Paragraph are
// omitted when the chunk carried no section heading.
type Citation struct {
	Chapter   string `json:"chapter"`
	Section   string `json:"section,omitempty"`
	Paragraph *int   `json:"paragraph,omitempty"`
}

// CitationList stores citations as a JSON column.
type CitationList []Citation

// Value implements driver.Valuer.
func (c CitationList) Value() (driver.Value, error) {
	if c == nil {
		c = CitationList{}
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *CitationList) Scan(value interface{}) error {
	if value == nil {
		*c = CitationList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported citation column type %T", value)
	}
}

// Turn is one query/answer exchange within a session. Turns are append
// only and ordered by CreatedAt.
type Turn struct {
	TurnID           string       `gorm:"primaryKey;size:26"`
	SessionID        string       `gorm:"index;size:36;not null"`
	Query            string       `gorm:"type:text;not null"`
	Answer           string       `gorm:"type:text;not null"`
	Citations        CitationList `gorm:"type:text"`
	RetrievalScore   float64      `gorm:"not null;default:0"`
	Fallback         bool         `gorm:"not null;default:false"`
	ProcessingTimeMS int64        `gorm:"not null;default:0"`
	CreatedAt        time.Time    `gorm:"index;autoCreateTime"`
}

// TableName maps Turn to its table.
func (Turn) TableName() string { return "turns" }
