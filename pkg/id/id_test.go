package id_test

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studyforge/bookqa/pkg/id"
)

func TestNewULIDSortable(t *testing.T) {
	first := id.NewULID()
	time.Sleep(2 * time.Millisecond)
	second := id.NewULID()

	assert.Len(t, first, 26)
	assert.NotEqual(t, first, second)

	ids := []string{second, first}
	sort.Strings(ids)
	assert.Equal(t, []string{first, second}, ids)
}

func TestSessionIDs(t *testing.T) {
	sid := id.NewSessionID()
	assert.True(t, id.IsSessionID(sid))
	assert.False(t, id.IsSessionID("not-a-session"))
	assert.False(t, id.IsSessionID(""))
}
