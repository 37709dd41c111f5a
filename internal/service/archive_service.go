package service

import (
	"context"
	"time"

	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/repository/contract"
	"literature-agent-be/internal/repository/specification"
	"literature-agent-be/internal/repository/unitofwork"
	"literature-agent-be/pkg/session"

	"github.com/google/uuid"
)

// archiveKeepTurns bounds the archived history of one session
const archiveKeepTurns = 200

// IArchiveService persists committed turns beyond the in-memory session
type IArchiveService interface {
	Archive(ctx context.Context, sessionID string, turns []session.Turn) error
	History(ctx context.Context, sessionID, role string, limit int) ([]*entity.ChatTurn, error)
	Count(ctx context.Context, sessionID string) (int64, error)
}

type archiveService struct {
	tx   unitofwork.Transactor
	repo contract.ChatTurnRepository
}

func NewArchiveService(tx unitofwork.Transactor, repo contract.ChatTurnRepository) IArchiveService {
	return &archiveService{tx: tx, repo: repo}
}

// Archive stores one exchange and trims the session to its newest turns in
// the same transaction
func (s *archiveService) Archive(ctx context.Context, sessionID string, turns []session.Turn) error {
	rows := make([]*entity.ChatTurn, 0, len(turns))
	for i, t := range turns {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			id = uuid.New()
		}
		rows = append(rows, &entity.ChatTurn{
			Id:        id,
			SessionId: sessionID,
			Role:      t.Role,
			Text:      t.Text,
			// user and assistant share a timestamp; keep their order stable
			CreatedAt: t.Timestamp.Add(time.Duration(i) * time.Microsecond),
		})
	}

	return s.tx.Do(ctx, func(uow unitofwork.UnitOfWork) error {
		repo := uow.ChatTurnRepository()
		if err := repo.CreateBulk(ctx, rows); err != nil {
			return err
		}
		_, err := repo.TrimSession(ctx, sessionID, archiveKeepTurns)
		return err
	})
}

// History returns the newest limit turns (all when limit <= 0) oldest first,
// only those of role when it is set
func (s *archiveService) History(ctx context.Context, sessionID, role string, limit int) ([]*entity.ChatTurn, error) {
	specs := []specification.Specification{specification.BySessionID{SessionID: sessionID}}
	if role != "" {
		specs = append(specs, specification.ByRole{Role: role})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit},
	)
	turns, err := s.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *archiveService) Count(ctx context.Context, sessionID string) (int64, error) {
	return s.repo.Count(ctx, specification.BySessionID{SessionID: sessionID})
}
