package biz

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/studyforge/bookqa/internal/bookqa/metrics"
	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/model"
)

// SessionManager resolves chat sessions and serves the history surface.
type SessionManager struct {
	sessions *store.SessionStore
}

// NewSessionManager creates a session manager.
func NewSessionManager(sessions *store.SessionStore) *SessionManager {
	return &SessionManager{sessions: sessions}
}

// Resolve returns a usable session for a chat request. An empty, unknown,
// expired or cleared id yields a brand new session; chat never 404s on
// session state.
func (m *SessionManager) Resolve(ctx context.Context, sessionID string) (*model.Session, bool, error) {
	if sessionID != "" {
		session, err := m.sessions.Get(ctx, sessionID)
		if err == nil {
			return session, false, nil
		}
		if !errors.Is(err, store.ErrSessionNotFound) &&
			!errors.Is(err, store.ErrSessionExpired) &&
			!errors.Is(err, store.ErrSessionCleared) {
			return nil, false, err
		}
		logger.Infow("session unusable, starting a new one",
			"session_id", sessionID, "reason", err.Error())
	}

	session, err := m.sessions.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// History returns a session's turns with the total count. Unknown, expired
// and cleared sessions are reported as not found.
func (m *SessionManager) History(ctx context.Context, sessionID string, limit, offset int) ([]*model.Turn, int64, error) {
	if _, err := m.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrSessionExpired) || errors.Is(err, store.ErrSessionCleared) {
			return nil, 0, store.ErrSessionNotFound
		}
		return nil, 0, err
	}
	return m.sessions.ListTurns(ctx, sessionID, limit, offset)
}

// Clear clears a session and returns the number of turns deleted. A second
// clear surfaces ErrSessionCleared; unknown and expired sessions surface
// ErrSessionNotFound.
func (m *SessionManager) Clear(ctx context.Context, sessionID string) (int64, error) {
	deleted, err := m.sessions.Clear(ctx, sessionID)
	if errors.Is(err, store.ErrSessionExpired) {
		return 0, store.ErrSessionNotFound
	}
	return deleted, err
}

// RecentTurns returns the last n turns for conversation context.
func (m *SessionManager) RecentTurns(ctx context.Context, sessionID string, n int) ([]*model.Turn, error) {
	return m.sessions.RecentTurns(ctx, sessionID, n)
}

// AppendTurn persists one exchange and slides the session TTL.
func (m *SessionManager) AppendTurn(ctx context.Context, turn *model.Turn) error {
	return m.sessions.AppendTurn(ctx, turn)
}

// StartSweeper runs periodic sweeps on the given pool until ctx is done.
// Each sweep marks idle sessions expired and deletes those expired longer
// than retain.
func (m *SessionManager) StartSweeper(ctx context.Context, pool *ants.Pool, interval, retain time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			sweep := func() {
				deleted, err := m.sessions.SweepExpired(ctx, retain)
				if err != nil {
					logger.Warnw("session sweep failed", "error", err)
					return
				}
				if deleted > 0 {
					metrics.Get().RecordSweep(deleted)
					logger.Infow("session sweep deleted stale sessions", "deleted", deleted)
				}
			}
			if err := pool.Submit(sweep); err != nil {
				logger.Warnw("sweeper pool unavailable, running inline", "error", err)
				sweep()
			}
		}
	}()
}
