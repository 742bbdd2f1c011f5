// Package id generates identifiers used across the service: ULIDs for
// queries and turns (sortable by creation time) and UUIDs for sessions.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a new lexicographically sortable identifier.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewSessionID returns a new opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// IsSessionID reports whether s looks like a session identifier.
func IsSessionID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}
