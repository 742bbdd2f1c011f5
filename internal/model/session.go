package model

import "time"

// Session states. Expired sessions are detected lazily from LastActivity;
// the stored state only moves to SessionExpired when a reader notices.
const (
	SessionActive  = "active"
	SessionCleared = "cleared"
	SessionExpired = "expired"
)

// Session is one conversation scope. SessionID is an opaque UUID handed to
// the caller; expiry slides on every appended turn.
type Session struct {
	SessionID    string    `gorm:"primaryKey;size:36"`
	State        string    `gorm:"size:16;not null;default:active"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	LastActivity time.Time `gorm:"index;not null"`
}

// TableName maps Session to its table.
func (Session) TableName() string { return "sessions" }
