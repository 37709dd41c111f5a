package service

import (
	"context"
	"testing"
	"time"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/repository/memory"
	"literature-agent-be/pkg/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocator() *SessionLocator {
	return NewSessionLocator(memory.NewSessionRepository(time.Hour), func(id string) *session.Controller {
		return session.NewController(id, session.Deps{Parser: stubParser{}})
	})
}

func TestChatHistoryFallsBackToArchiveByRole(t *testing.T) {
	sessions := newLocator()
	sessions.Open("s-1")

	repo := &memTurnRepo{}
	for _, row := range []struct{ role, text string }{
		{"user", "q1"}, {"assistant", "a1"}, {"user", "q2"}, {"assistant", "a2"},
	} {
		repo.rows = append(repo.rows, &entity.ChatTurn{Id: uuid.New(), SessionId: "s-1", Role: row.role, Text: row.text})
	}
	chat := NewChatService(sessions, NewArchiveService(&fakeTx{repo: repo}, repo))

	res, err := chat.History(context.Background(), "s-1", &dto.HistoryQuery{Role: "user"})
	require.NoError(t, err)
	assert.True(t, res.Archived)
	assert.Equal(t, int64(4), res.Stored)
	require.Len(t, res.Turns, 2)
	assert.Equal(t, "q1", res.Turns[0].Text)
	assert.Equal(t, "q2", res.Turns[1].Text)
}

func TestChatHistoryWithoutArchive(t *testing.T) {
	sessions := newLocator()
	sessions.Open("s-1")
	chat := NewChatService(sessions, nil)

	res, err := chat.History(context.Background(), "s-1", &dto.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Turns)
	assert.False(t, res.Archived)
	assert.Zero(t, res.Stored)
}

func TestChatHistoryUnknownSession(t *testing.T) {
	chat := NewChatService(newLocator(), nil)

	_, err := chat.History(context.Background(), "missing", &dto.HistoryQuery{})
	assert.Error(t, err)
}
