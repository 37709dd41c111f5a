package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"literature-agent-be/internal/constant"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/agent"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/events"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/stream"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	logModule   = "Session"
	eventBuffer = 32
)

// Archiver persists committed turns
type Archiver interface {
	Archive(ctx context.Context, sessionID string, turns []Turn) error
}

// EventPublisher receives domain lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Deps are the collaborators of a Controller. Archiver and Publisher are optional.
type Deps struct {
	Parser    parser.Parser
	Router    *router.Router
	Agents    *agent.Set
	Segmenter agent.Segmenter
	Archiver  Archiver
	Publisher EventPublisher
	Logger    logger.ILogger
}

// Controller drives one session: it accepts a single call at a time, routes
// it to an agent, relays the agent's events and commits history on success.
type Controller struct {
	deps   Deps
	tracer trace.Tracer

	mu         sync.Mutex
	session    *Session
	processing bool
}

func NewController(id string, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Router == nil {
		deps.Router = router.NewRouter(deps.Logger)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Controller{
		deps:    deps,
		tracer:  otel.Tracer("literature-agent-be/session"),
		session: &Session{ID: id, OpenedAt: time.Now()},
	}
}

func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Current returns a snapshot of the session
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	st := Status{SessionID: s.ID, Turns: len(s.History), Processing: c.processing}
	if s.HasDocument() {
		st.Loaded = true
		st.Document = s.Document.Name
		st.Pages = s.Document.Pages
	}
	if s.Figures != nil {
		st.Figures = s.Figures.Len()
		for _, f := range s.Figures.Figures() {
			if s.Figures.Segmented(f.Number) {
				st.Segmented++
			}
		}
	}
	return st
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	c.processing = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

// Load parses a PDF and makes it the session's document. History and the
// figure store start over.
func (c *Controller) Load(ctx context.Context, path string) (*Session, error) {
	if !c.acquire() {
		return nil, ErrSessionBusy
	}
	defer c.release()

	doc, err := c.deps.Parser.Load(ctx, path)
	if err != nil {
		c.deps.Logger.Error(logModule, "Failed to load document", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil, err
	}

	c.mu.Lock()
	c.session.Document = doc
	c.session.Figures = figure.NewStore(doc.Figures)
	c.session.History = nil
	snap := c.session.snapshot()
	c.mu.Unlock()

	c.deps.Logger.Info(logModule, "Document loaded", map[string]interface{}{
		"session_id": snap.ID,
		"document":   doc.Name,
		"pages":      doc.Pages,
		"figures":    len(doc.Figures),
	})
	c.publish(events.DocumentLoaded(snap.ID, doc.ID, doc.Name, doc.Pages, len(doc.Figures)))
	return snap, nil
}

// Query answers a question. The returned channel carries the call's events
// and is closed after the terminal one.
func (c *Controller) Query(ctx context.Context, question string) <-chan stream.Event {
	return c.start(ctx, "session.query", func(ctx context.Context, snap *Session) (*router.Decision, agent.Payload, error) {
		decision, err := c.deps.Router.Route(question, snap.HasDocument())
		if err != nil {
			return nil, agent.Payload{}, err
		}
		return decision, agent.Payload{Query: question, Decision: decision}, nil
	}, question)
}

// Generate produces a report or slide deck with explicit options
func (c *Controller) Generate(ctx context.Context, opts agent.GenerateOptions) <-chan stream.Event {
	if !opts.Type.IsGeneration() {
		opts.Type = router.IntentReport
	}
	userText := strings.TrimSpace(fmt.Sprintf("/%s %s", opts.Type, opts.Instruction))
	return c.start(ctx, "session.generate", func(ctx context.Context, snap *Session) (*router.Decision, agent.Payload, error) {
		decision := &router.Decision{Intent: opts.Type, Query: userText}
		if !snap.HasDocument() {
			return decision, agent.Payload{}, &router.RoutingError{Intent: opts.Type}
		}
		return decision, agent.Payload{Query: userText, Decision: decision, Generate: &opts}, nil
	}, userText)
}

type routeFunc func(ctx context.Context, snap *Session) (*router.Decision, agent.Payload, error)

func (c *Controller) start(ctx context.Context, spanName string, route routeFunc, userText string) <-chan stream.Event {
	out := make(chan stream.Event, eventBuffer)
	if !c.acquire() {
		c.deps.Logger.Warn(logModule, "Rejected call while busy", map[string]interface{}{
			"session_id": c.ID(),
		})
		out <- stream.Event{Type: stream.TypeError, Content: ErrSessionBusy.Error()}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer c.release()
		c.run(ctx, spanName, route, userText, out)
	}()
	return out
}

func (c *Controller) run(ctx context.Context, spanName string, route routeFunc, userText string, out chan<- stream.Event) {
	ctx, span := c.tracer.Start(ctx, spanName)
	defer span.End()

	em := stream.NewEmitter(ctx, out, c.deps.Logger)
	snap := c.Current()
	span.SetAttributes(attribute.String("session.id", snap.ID))

	decision, payload, err := route(ctx, snap)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		em.Error(err.Error())
		return
	}
	span.SetAttributes(attribute.String("session.intent", string(decision.Intent)))

	ag, err := c.deps.Agents.For(decision.Intent)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		em.Error(err.Error())
		return
	}

	view := &agent.Session{
		ID:       snap.ID,
		Document: snap.Document,
		History:  snap.Messages(),
		Figures:  snap.Figures,
	}
	started := time.Now()
	res, err := ag.Run(ctx, view, payload, em)
	if ctx.Err() != nil {
		// consumer went away; nothing is committed
		c.deps.Logger.Info(logModule, "Call cancelled", map[string]interface{}{
			"session_id": snap.ID,
			"intent":     string(decision.Intent),
		})
		span.SetStatus(codes.Error, "cancelled")
		return
	}
	if err != nil {
		c.deps.Logger.Warn(logModule, "Agent failed", map[string]interface{}{
			"session_id": snap.ID,
			"intent":     string(decision.Intent),
			"error":      err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		em.Error(err.Error())
		return
	}

	answer := em.AnswerText()
	if answer == "" && res != nil {
		answer = res.Summary
	}
	turns := c.commit(snap.ID, userText, answer)

	c.deps.Logger.Info(logModule, "Call completed", map[string]interface{}{
		"session_id": snap.ID,
		"intent":     string(decision.Intent),
		"duration":   time.Since(started).String(),
	})
	c.archive(snap.ID, turns)
	c.publish(events.TurnCompleted(snap.ID, string(decision.Intent), len([]rune(answer))))
	if res != nil && res.Artifact != nil {
		c.publish(events.ArtifactGenerated(snap.ID, string(res.Artifact.Kind), res.Artifact.Format, res.Artifact.Name, res.Artifact.Size))
	}

	em.Complete(string(decision.Intent))
}

// commit appends the user and assistant turns together
func (c *Controller) commit(sessionID, userText, answer string) []Turn {
	now := time.Now()
	turns := []Turn{
		{ID: uuid.NewString(), Role: constant.ChatMessageRoleUser, Text: userText, Timestamp: now},
		{ID: uuid.NewString(), Role: constant.ChatMessageRoleAssistant, Text: answer, Timestamp: now},
	}
	c.mu.Lock()
	if c.session.ID == sessionID {
		c.session.History = append(c.session.History, turns...)
	}
	c.mu.Unlock()
	return turns
}

// Prewarm segments the given figures (all when empty) of the loaded
// document ahead of any question. It stops early when the document was
// replaced meanwhile. Segmentation goes through the store, so a query
// racing the prewarm never segments a figure twice.
func (c *Controller) Prewarm(ctx context.Context, documentID string, numbers []int) (int, error) {
	snap := c.Current()
	if !snap.HasDocument() || snap.Figures == nil {
		return 0, ErrNoDocument
	}
	if c.deps.Segmenter == nil {
		return 0, nil
	}
	if len(numbers) == 0 {
		for _, f := range snap.Figures.Figures() {
			numbers = append(numbers, f.Number)
		}
	}

	done := 0
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if cur := c.Current(); !cur.HasDocument() || cur.Document.ID != documentID {
			return done, nil
		}
		subs, computed, err := snap.Figures.EnsureSegmented(ctx, n, c.deps.Segmenter.Segment)
		if err != nil {
			c.deps.Logger.Warn(logModule, "Prewarm segmentation failed", map[string]interface{}{
				"figure": n,
				"error":  err.Error(),
			})
			continue
		}
		if computed {
			done++
			c.deps.Logger.Debug(logModule, "Figure prewarmed", map[string]interface{}{
				"figure":     n,
				"subfigures": len(subs),
			})
		}
	}
	return done, nil
}

func (c *Controller) archive(sessionID string, turns []Turn) {
	if c.deps.Archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Archiver.Archive(ctx, sessionID, turns); err != nil {
		c.deps.Logger.Warn(logModule, "Failed to archive turns", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func (c *Controller) publish(event events.Event) {
	if c.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.deps.Publisher.Publish(ctx, event); err != nil {
		c.deps.Logger.Warn(logModule, "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
