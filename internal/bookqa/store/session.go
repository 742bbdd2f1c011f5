package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/studyforge/bookqa/internal/model"
	"github.com/studyforge/bookqa/pkg/id"
)

var (
	// ErrSessionNotFound means no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCleared means the session was already cleared.
	ErrSessionCleared = errors.New("session already cleared")
	// ErrSessionExpired means the session idled past its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore manages conversation sessions and their turns. Expiry is
// lazy: sessions are marked expired when a reader finds LastActivity older
// than the TTL, and a background sweep deletes long-expired rows.
type SessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSessionStore creates a session store with the given idle TTL.
func NewSessionStore(db *gorm.DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

// Create starts a new active session and returns it.
func (s *SessionStore) Create(ctx context.Context) (*model.Session, error) {
	session := &model.Session{
		SessionID:    id.NewSessionID(),
		State:        model.SessionActive,
		LastActivity: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get loads a session, applying lazy expiry: an active session whose
// LastActivity is older than the TTL is marked expired before being
// reported as ErrSessionExpired. Malformed ids are rejected without a
// database round trip.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	if !id.IsSessionID(sessionID) {
		return nil, ErrSessionNotFound
	}
	var session model.Session
	err := s.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	switch session.State {
	case model.SessionCleared:
		return &session, ErrSessionCleared
	case model.SessionExpired:
		return &session, ErrSessionExpired
	}

	if time.Since(session.LastActivity) > s.ttl {
		if err := s.db.WithContext(ctx).Model(&session).
			Update("state", model.SessionExpired).Error; err != nil {
			return nil, fmt.Errorf("failed to expire session: %w", err)
		}
		session.State = model.SessionExpired
		return &session, ErrSessionExpired
	}
	return &session, nil
}

// Touch bumps LastActivity so the sliding TTL restarts.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_activity", time.Now().UTC()).Error
}

// Clear marks a session cleared and deletes its turns, returning the number
// of turns removed. Clearing an already cleared session is a conflict;
// unknown and expired sessions map to their own errors.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) (int64, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("session_id = ?", sessionID).Delete(&model.Turn{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return tx.Model(session).Update("state", model.SessionCleared).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear session: %w", err)
	}
	return deleted, nil
}

// AppendTurn persists one exchange and slides the session TTL.
func (s *SessionStore) AppendTurn(ctx context.Context, turn *model.Turn) error {
	if turn.TurnID == "" {
		turn.TurnID = id.NewULID()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(turn).Error; err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}
		return tx.Model(&model.Session{}).
			Where("session_id = ?", turn.SessionID).
			Update("last_activity", time.Now().UTC()).Error
	})
}

// ListTurns returns turns in chronological order with the total count.
func (s *SessionStore) ListTurns(ctx context.Context, sessionID string, limit, offset int) ([]*model.Turn, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Turn{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count turns: %w", err)
	}

	query := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, turn_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var turns []*model.Turn
	if err := query.Find(&turns).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, total, nil
}

// RecentTurns returns the last n turns in chronological order, for use as
// conversation context.
func (s *SessionStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]*model.Turn, error) {
	var turns []*model.Turn
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, turn_id DESC").
		Limit(n).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SweepExpired marks idle sessions expired and deletes sessions (with their
// turns) that have been inactive longer than retain. It returns the number
// of sessions deleted.
func (s *SessionStore) SweepExpired(ctx context.Context, retain time.Duration) (int64, error) {
	now := time.Now().UTC()

	if err := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("state = ? AND last_activity < ?", model.SessionActive, now.Add(-s.ttl)).
		Update("state", model.SessionExpired).Error; err != nil {
		return 0, fmt.Errorf("failed to mark expired sessions: %w", err)
	}

	cutoff := now.Add(-retain)
	var stale []string
	if err := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("state = ? AND last_activity < ?", model.SessionExpired, cutoff).
		Pluck("session_id", &stale).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id IN ?", stale).Delete(&model.Turn{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id IN ?", stale).Delete(&model.Session{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}
	return int64(len(stale)), nil
}
