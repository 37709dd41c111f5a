package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/repository/contract"
	"literature-agent-be/internal/repository/specification"
	"literature-agent-be/internal/repository/unitofwork"
	"literature-agent-be/pkg/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTurnRepo struct {
	rows      []*entity.ChatTurn
	createErr error
	trimmed   []int
}

func (r *memTurnRepo) CreateBulk(ctx context.Context, turns []*entity.ChatTurn) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.rows = append(r.rows, turns...)
	return nil
}

func (r *memTurnRepo) match(row *entity.ChatTurn, specs []specification.Specification) bool {
	for _, s := range specs {
		switch v := s.(type) {
		case specification.BySessionID:
			if row.SessionId != v.SessionID {
				return false
			}
		case specification.ByRole:
			if row.Role != v.Role {
				return false
			}
		}
	}
	return true
}

// FindAll applies session, role and limit specs; rows are returned newest first
func (r *memTurnRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error) {
	out := make([]*entity.ChatTurn, 0, len(r.rows))
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.match(r.rows[i], specs) {
			out = append(out, r.rows[i])
		}
	}
	for _, s := range specs {
		if l, ok := s.(specification.Limit); ok && l.N > 0 && len(out) > l.N {
			out = out[:l.N]
		}
	}
	return out, nil
}

func (r *memTurnRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if r.match(row, specs) {
			n++
		}
	}
	return n, nil
}

func (r *memTurnRepo) TrimSession(ctx context.Context, sessionId string, keep int) (int64, error) {
	r.trimmed = append(r.trimmed, keep)
	return 0, nil
}

// fakeTx commits when fn succeeds; rows written by a failed fn are kept,
// so tests look at the commit count only
type fakeTx struct {
	repo      *memTurnRepo
	calls     int
	committed int
}

func (f *fakeTx) ChatTurnRepository() contract.ChatTurnRepository { return f.repo }

func (f *fakeTx) Do(ctx context.Context, fn func(uow unitofwork.UnitOfWork) error) error {
	f.calls++
	if err := fn(f); err != nil {
		return err
	}
	f.committed++
	return nil
}

func TestArchiveStoresExchangeInOrder(t *testing.T) {
	repo := &memTurnRepo{}
	tx := &fakeTx{repo: repo}
	svc := NewArchiveService(tx, repo)

	now := time.Now()
	userID := uuid.NewString()
	err := svc.Archive(context.Background(), "s-1", []session.Turn{
		{ID: userID, Role: "user", Text: "what is figure 1?", Timestamp: now},
		{ID: "not-a-uuid", Role: "assistant", Text: "an architecture diagram", Timestamp: now},
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 2)
	assert.Equal(t, userID, repo.rows[0].Id.String())
	assert.NotEqual(t, uuid.Nil, repo.rows[1].Id)
	assert.True(t, repo.rows[1].CreatedAt.After(repo.rows[0].CreatedAt))
	assert.Equal(t, []int{archiveKeepTurns}, repo.trimmed)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, 1, tx.committed)
}

func TestArchiveDoesNotCommitOnFailure(t *testing.T) {
	repo := &memTurnRepo{createErr: errors.New("db down")}
	tx := &fakeTx{repo: repo}
	svc := NewArchiveService(tx, repo)

	err := svc.Archive(context.Background(), "s-1", []session.Turn{{Role: "user", Text: "hi"}})
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 0, tx.committed)
	assert.Empty(t, repo.trimmed)
}

func TestHistoryReturnsNewestOldestFirst(t *testing.T) {
	repo := &memTurnRepo{}
	for _, text := range []string{"q1", "a1", "q2", "a2"} {
		repo.rows = append(repo.rows, &entity.ChatTurn{Id: uuid.New(), SessionId: "s-1", Text: text})
	}
	svc := NewArchiveService(&fakeTx{repo: repo}, repo)

	turns, err := svc.History(context.Background(), "s-1", "", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q2", turns[0].Text)
	assert.Equal(t, "a2", turns[1].Text)
}

func TestHistoryByRoleAndCount(t *testing.T) {
	repo := &memTurnRepo{}
	for i, text := range []string{"q1", "a1", "q2", "a2"} {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		repo.rows = append(repo.rows, &entity.ChatTurn{Id: uuid.New(), SessionId: "s-1", Role: role, Text: text})
	}
	repo.rows = append(repo.rows, &entity.ChatTurn{Id: uuid.New(), SessionId: "s-2", Role: "user", Text: "other"})
	svc := NewArchiveService(&fakeTx{repo: repo}, repo)

	turns, err := svc.History(context.Background(), "s-1", "assistant", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "a1", turns[0].Text)
	assert.Equal(t, "a2", turns[1].Text)

	n, err := svc.Count(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
