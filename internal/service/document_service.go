package service

import (
	"context"
	"fmt"
	"net/url"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/session"

	"github.com/gofiber/fiber/v2"
)

const documentModule = "Document"

type IDocumentService interface {
	Load(ctx context.Context, sessionID, path string) (*dto.UploadDocumentResponse, error)
	Status(sessionID string) (session.Status, error)
	Figures(sessionID string) ([]dto.FigureDTO, error)
	FigureImage(sessionID string, req dto.FigureImageRequest) (string, error)
	Segment(ctx context.Context, sessionID string, figures []int) (*dto.SegmentFiguresResponse, error)
}

type documentService struct {
	sessions  *SessionLocator
	publisher IPublisherService
	autoSplit bool
	logger    logger.ILogger
}

func NewDocumentService(sessions *SessionLocator, publisher IPublisherService, autoSplit bool, log logger.ILogger) IDocumentService {
	return &documentService{
		sessions:  sessions,
		publisher: publisher,
		autoSplit: autoSplit,
		logger:    log,
	}
}

func (s *documentService) Load(ctx context.Context, sessionID, path string) (*dto.UploadDocumentResponse, error) {
	ctrl := s.sessions.Open(sessionID)
	snap, err := ctrl.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	res := &dto.UploadDocumentResponse{
		SessionId:  snap.ID,
		DocumentId: snap.Document.ID,
		Name:       snap.Document.Name,
		Pages:      snap.Document.Pages,
		Figures:    figureDTOs(snap.ID, snap.Figures),
	}

	if s.autoSplit && snap.Figures.Len() > 0 && s.publisher != nil {
		err := s.publisher.PublishPrewarm(ctx, dto.PrewarmFiguresMessage{
			SessionId:  snap.ID,
			DocumentId: snap.Document.ID,
		})
		if err != nil {
			s.logger.Warn(documentModule, "Failed to queue figure prewarm", map[string]interface{}{
				"session_id": snap.ID,
				"error":      err.Error(),
			})
		} else {
			res.AutoSplit = true
		}
	}
	return res, nil
}

func (s *documentService) Status(sessionID string) (session.Status, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return session.Status{}, err
	}
	return ctrl.Status(), nil
}

func (s *documentService) Figures(sessionID string) ([]dto.FigureDTO, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	snap := ctrl.Current()
	if !snap.HasDocument() {
		return nil, session.ErrNoDocument
	}
	return figureDTOs(snap.ID, snap.Figures), nil
}

// FigureImage resolves a figure or cached subfigure to its file path
func (s *documentService) FigureImage(sessionID string, req dto.FigureImageRequest) (string, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return "", err
	}
	snap := ctrl.Current()
	if !snap.HasDocument() {
		return "", session.ErrNoDocument
	}
	if req.Subfigure == "" {
		fig, ok := snap.Figures.Figure(req.Figure)
		if !ok {
			return "", fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Figure %d not found", req.Figure))
		}
		return fig.ImagePath, nil
	}
	sub, ok := snap.Figures.Subfigure(req.Figure, req.Subfigure)
	if !ok {
		return "", fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Figure %d%s not found", req.Figure, req.Subfigure))
	}
	return sub.ImagePath, nil
}

func (s *documentService) Segment(ctx context.Context, sessionID string, figures []int) (*dto.SegmentFiguresResponse, error) {
	ctrl, err := s.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	snap := ctrl.Current()
	if !snap.HasDocument() {
		return nil, session.ErrNoDocument
	}
	n, err := ctrl.Prewarm(ctx, snap.Document.ID, figures)
	if err != nil {
		return nil, err
	}
	return &dto.SegmentFiguresResponse{Segmented: n}, nil
}

func figureDTOs(sessionID string, store *figure.Store) []dto.FigureDTO {
	if store == nil {
		return []dto.FigureDTO{}
	}
	out := make([]dto.FigureDTO, 0, store.Len())
	for _, f := range store.Figures() {
		item := dto.FigureDTO{
			Label:     f.Label,
			Number:    f.Number,
			Caption:   f.Caption,
			Page:      f.Page,
			ImageURL:  imageURL(sessionID, f.Number, ""),
			Segmented: store.Segmented(f.Number),
		}
		if subs, ok := store.Subfigures(f.Number); ok {
			for _, sub := range subs {
				item.Subfigures = append(item.Subfigures, dto.SubfigureDTO{
					Label:      sub.Label,
					FullLabel:  sub.FullLabel(),
					Confidence: sub.Confidence,
					Method:     string(sub.Method),
					ImageURL:   imageURL(sessionID, f.Number, sub.Label),
				})
			}
		}
		out = append(out, item)
	}
	return out
}

func imageURL(sessionID string, number int, sub string) string {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("figure", fmt.Sprint(number))
	if sub != "" {
		q.Set("subfigure", sub)
	}
	return "/api/figures/image?" + q.Encode()
}
