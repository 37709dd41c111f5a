package contract

import (
	"context"

	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/repository/specification"
)

type ChatTurnRepository interface {
	CreateBulk(ctx context.Context, turns []*entity.ChatTurn) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// TrimSession deletes all but the newest keep turns of a session
	TrimSession(ctx context.Context, sessionId string, keep int) (int64, error)
}
