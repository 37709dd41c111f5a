package mapper

import (
	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ChatTurnToEntity(t *model.ChatTurn) *entity.ChatTurn {
	if t == nil {
		return nil
	}
	return &entity.ChatTurn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ChatMapper) ChatTurnToModel(t *entity.ChatTurn) *model.ChatTurn {
	if t == nil {
		return nil
	}
	return &model.ChatTurn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ChatMapper) ChatTurnsToEntities(turns []*model.ChatTurn) []*entity.ChatTurn {
	out := make([]*entity.ChatTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, m.ChatTurnToEntity(t))
	}
	return out
}
