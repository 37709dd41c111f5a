package service

import (
	"context"

	"literature-agent-be/internal/dto"
	"literature-agent-be/pkg/agent"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/stream"
)

type IChatService interface {
	Query(ctx context.Context, sessionID string, req *dto.QueryRequest) (<-chan stream.Event, error)
	Generate(ctx context.Context, sessionID string, req *dto.GenerateRequest) (<-chan stream.Event, error)
	History(ctx context.Context, sessionID string, q *dto.HistoryQuery) (*dto.HistoryResponse, error)
}

type chatService struct {
	sessions *SessionLocator
	archive  IArchiveService // nil when no database is configured
}

func NewChatService(sessions *SessionLocator, archive IArchiveService) IChatService {
	return &chatService{sessions: sessions, archive: archive}
}

// Query opens the session on first use so chit-chat works before any upload
func (s *chatService) Query(ctx context.Context, sessionID string, req *dto.QueryRequest) (<-chan stream.Event, error) {
	ctrl := s.sessions.Open(sessionID)
	return ctrl.Query(ctx, req.Question), nil
}

func (s *chatService) Generate(ctx context.Context, sessionID string, req *dto.GenerateRequest) (<-chan stream.Event, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.Generate(ctx, GenerateOptions(req)), nil
}

func (s *chatService) History(ctx context.Context, sessionID string, q *dto.HistoryQuery) (*dto.HistoryResponse, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	history := ctrl.Current().History
	res := &dto.HistoryResponse{SessionId: sessionID, Turns: []dto.TurnDTO{}}
	for _, t := range history {
		if q.Role != "" && t.Role != q.Role {
			continue
		}
		res.Turns = append(res.Turns, dto.TurnDTO{Id: t.ID, Role: t.Role, Text: t.Text, CreatedAt: t.Timestamp})
	}
	if s.archive == nil {
		return res, nil
	}

	res.Stored, err = s.archive.Count(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 || res.Stored == 0 {
		return res, nil
	}

	// in-memory history is reset by a reload; fall back to the archive
	archived, err := s.archive.History(ctx, sessionID, q.Role, archiveKeepTurns)
	if err != nil {
		return nil, err
	}
	for _, t := range archived {
		res.Turns = append(res.Turns, dto.TurnDTO{Id: t.Id.String(), Role: t.Role, Text: t.Text, CreatedAt: t.CreatedAt})
	}
	res.Archived = len(archived) > 0
	return res, nil
}

// GenerateOptions maps the request onto agent options
func GenerateOptions(req *dto.GenerateRequest) agent.GenerateOptions {
	include := true
	if req.IncludeFigures != nil {
		include = *req.IncludeFigures
	}
	return agent.GenerateOptions{
		Type:           router.Intent(req.Type),
		Style:          req.Style,
		Language:       req.Language,
		IncludeFigures: include,
		MaxFigures:     req.MaxFigures,
		OutputFormat:   req.OutputFormat,
		Figures:        req.Figures,
		Instruction:    req.Instruction,
	}
}
