package service

import (
	"literature-agent-be/internal/repository/memory"
	"literature-agent-be/pkg/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ControllerFactory builds the controller of a new session
type ControllerFactory func(id string) *session.Controller

// SessionLocator finds or opens session controllers
type SessionLocator struct {
	repo    *memory.SessionRepository
	factory ControllerFactory
}

func NewSessionLocator(repo *memory.SessionRepository, factory ControllerFactory) *SessionLocator {
	return &SessionLocator{repo: repo, factory: factory}
}

// Open returns the controller of id, creating the session when it is new.
// An empty id opens a fresh session.
func (l *SessionLocator) Open(id string) *session.Controller {
	if id == "" {
		id = uuid.NewString()
	}
	return l.repo.GetOrCreate(id, l.factory)
}

// Find returns an existing controller
func (l *SessionLocator) Find(id string) (*session.Controller, error) {
	if id == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	ctrl, ok := l.repo.Get(id)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found or expired")
	}
	return ctrl, nil
}

// Lookup satisfies the consumer's lookup without HTTP errors
func (l *SessionLocator) Lookup(id string) (*session.Controller, bool) {
	return l.repo.Get(id)
}
