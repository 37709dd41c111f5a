package agent

import (
	"context"
	"fmt"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/document"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/stream"
)

const logModule = "Agent"

// Session is the read view of session state an agent works against. Figures
// is the only part an agent may grow, through EnsureSegmented.
type Session struct {
	ID       string
	Document *parser.Document // nil when no document is loaded
	History  []llm.Message
	Figures  *figure.Store
}

// HasDocument reports whether a document is loaded
func (s *Session) HasDocument() bool {
	return s != nil && s.Document != nil
}

// GenerateOptions configure report and slide generation
type GenerateOptions struct {
	Type           router.Intent
	Style          string
	Language       string
	IncludeFigures bool
	MaxFigures     int
	OutputFormat   string
	Figures        []int  // figure-focused generation; empty means pick automatically
	Instruction    string // free text from the command, e.g. "focus on the method"
}

// Payload is the per-call input of an agent
type Payload struct {
	Query    string
	Decision *router.Decision
	Generate *GenerateOptions
}

// Result is what an agent hands back on success. The controller commits
// the streamed answer text, or Summary when nothing was streamed.
type Result struct {
	Summary  string
	Artifact *document.Artifact
}

// Agent handles one intent. Run emits non-terminal events only; the caller
// turns the returned error or result into the terminal event.
type Agent interface {
	Kind() router.Intent
	Run(ctx context.Context, sess *Session, payload Payload, em *stream.Emitter) (*Result, error)
}

// Segmenter splits a main figure into subfigures
type Segmenter interface {
	Segment(ctx context.Context, fig figure.Figure) ([]figure.Subfigure, error)
}

// ArtifactRegistry hands out download tokens for generated files
type ArtifactRegistry interface {
	Register(ctx context.Context, artifact *document.Artifact) (string, error)
}

// Config holds agent tuning
type Config struct {
	VisionTimeout time.Duration
	MaxHistory    int
	DownloadPath  string // e.g. "/api/download"
}

// Deps are the collaborators shared by all agents
type Deps struct {
	LLM       llm.LLMProvider
	Segmenter Segmenter
	Builder   document.Builder
	Artifacts ArtifactRegistry
	Config    Config
	Logger    logger.ILogger
}

// Set holds exactly one agent per intent
type Set struct {
	qa        Agent
	subfigure Agent
	report    Agent
	ppt       Agent
}

func NewSet(deps Deps) *Set {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Config.VisionTimeout <= 0 {
		deps.Config.VisionTimeout = 2 * time.Minute
	}
	if deps.Config.MaxHistory <= 0 {
		deps.Config.MaxHistory = 10
	}
	if deps.Config.DownloadPath == "" {
		deps.Config.DownloadPath = "/api/download"
	}
	return &Set{
		qa:        NewQAAgent(deps),
		subfigure: NewSubfigureAgent(deps),
		report:    NewGenerationAgent(router.IntentReport, deps),
		ppt:       NewGenerationAgent(router.IntentPPT, deps),
	}
}

// For returns the agent of an intent
func (s *Set) For(intent router.Intent) (Agent, error) {
	switch intent {
	case router.IntentQA:
		return s.qa, nil
	case router.IntentSubfigure:
		return s.subfigure, nil
	case router.IntentReport:
		return s.report, nil
	case router.IntentPPT:
		return s.ppt, nil
	default:
		return nil, fmt.Errorf("no agent for intent %q", intent)
	}
}

// recentHistory keeps the last n messages
func recentHistory(history []llm.Message, n int) []llm.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// relay forwards a model stream as answer chunks. It returns whether any
// chunk was delivered and the stream's error, if any.
func relay(ctx context.Context, ch <-chan llm.StreamChunk, em *stream.Emitter) (bool, error) {
	emitted := false
	for {
		select {
		case <-ctx.Done():
			return emitted, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return emitted, nil
			}
			if chunk.Err != nil {
				return emitted, chunk.Err
			}
			if chunk.Content == "" {
				continue
			}
			if !em.Chunk(chunk.Content) {
				return emitted, ctx.Err()
			}
			emitted = true
		}
	}
}
