package session

import (
	"errors"
	"time"

	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/parser"
)

var (
	// ErrSessionBusy is returned when a call arrives while another is processing
	ErrSessionBusy = errors.New("the session is busy with another request, please wait")
	// ErrNoDocument is returned by operations that need a loaded document
	ErrNoDocument = errors.New("no document is loaded")
)

// Turn is one committed conversation message
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the state of one reading session. It is only mutated by its
// Controller, one call at a time.
type Session struct {
	ID       string
	Document *parser.Document
	History  []Turn
	Figures  *figure.Store
	OpenedAt time.Time
}

func (s *Session) HasDocument() bool {
	return s != nil && s.Document != nil
}

// Messages converts the history to LLM messages
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(s.History))
	for _, t := range s.History {
		out = append(out, llm.Message{Role: t.Role, Content: t.Text})
	}
	return out
}

// snapshot copies the history so readers never see a later append
func (s *Session) snapshot() *Session {
	cp := *s
	cp.History = append([]Turn(nil), s.History...)
	return &cp
}

// Status summarises a session for the status endpoint
type Status struct {
	SessionID  string `json:"session_id"`
	Loaded     bool   `json:"loaded"`
	Document   string `json:"document,omitempty"`
	Pages      int    `json:"pages"`
	Figures    int    `json:"figures"`
	Segmented  int    `json:"segmented"`
	Turns      int    `json:"turns"`
	Processing bool   `json:"processing"`
}
