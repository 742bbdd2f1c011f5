package biz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/model"
)

func newTestSessionManager(t *testing.T) (*biz.SessionManager, *store.SessionStore) {
	t.Helper()
	sessions := store.NewSessionStore(newTestDB(t), 24*time.Hour)
	return biz.NewSessionManager(sessions), sessions
}

func TestResolveEmptyIDCreatesSession(t *testing.T) {
	m, _ := newTestSessionManager(t)

	session, created, err := m.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.SessionActive, session.State)
}

func TestResolveActiveSessionReused(t *testing.T) {
	m, sessions := newTestSessionManager(t)
	existing, err := sessions.Create(context.Background())
	require.NoError(t, err)

	session, created, err := m.Resolve(context.Background(), existing.SessionID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.SessionID, session.SessionID)
}

func TestResolveClearedSessionCreatesNew(t *testing.T) {
	m, sessions := newTestSessionManager(t)
	ctx := context.Background()
	existing, err := sessions.Create(ctx)
	require.NoError(t, err)
	_, err = sessions.Clear(ctx, existing.SessionID)
	require.NoError(t, err)

	session, created, err := m.Resolve(ctx, existing.SessionID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, existing.SessionID, session.SessionID)
}

func TestHistoryNotFoundForExpired(t *testing.T) {
	sessions := store.NewSessionStore(newTestDB(t), time.Nanosecond)
	m := biz.NewSessionManager(sessions)
	ctx := context.Background()

	session, err := sessions.Create(ctx)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, _, err = m.History(ctx, session.SessionID, 0, 0)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestHistoryReturnsTurns(t *testing.T) {
	m, sessions := newTestSessionManager(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sessions.AppendTurn(ctx, &model.Turn{SessionID: session.SessionID, Query: "q", Answer: "a"}))

	turns, total, err := m.History(ctx, session.SessionID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, turns, 1)
}

func TestClearConflictSurfaces(t *testing.T) {
	m, sessions := newTestSessionManager(t)
	ctx := context.Background()
	session, err := sessions.Create(ctx)
	require.NoError(t, err)

	_, err = m.Clear(ctx, session.SessionID)
	require.NoError(t, err)

	_, err = m.Clear(ctx, session.SessionID)
	assert.ErrorIs(t, err, store.ErrSessionCleared)
}

func TestClearUnknownSession(t *testing.T) {
	m, _ := newTestSessionManager(t)

	_, err := m.Clear(context.Background(), "99999999-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}
