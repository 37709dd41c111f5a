package memory

import (
	"testing"
	"time"

	"literature-agent-be/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReusesController(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	created := 0
	create := func(id string) *session.Controller {
		created++
		return session.NewController(id, session.Deps{})
	}

	a := repo.GetOrCreate("s-1", create)
	b := repo.GetOrCreate("s-1", create)
	c := repo.GetOrCreate("s-2", create)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, repo.Count())

	got, ok := repo.Get("s-2")
	require.True(t, ok)
	assert.Same(t, c, got)

	repo.Delete("s-2")
	_, ok = repo.Get("s-2")
	assert.False(t, ok)
}

func TestSessionsExpire(t *testing.T) {
	repo := NewSessionRepository(20 * time.Millisecond)
	repo.GetOrCreate("s-1", func(id string) *session.Controller {
		return session.NewController(id, session.Deps{})
	})

	time.Sleep(40 * time.Millisecond)
	_, ok := repo.Get("s-1")
	assert.False(t, ok)
}
