package stream

import (
	"context"
	"strings"
	"sync"

	"literature-agent-be/internal/pkg/logger"
)

const logModule = "Stream"

// Emitter writes one call's events to a channel. It delivers at most one
// terminal event, drops everything after it, and stops sending once ctx is
// done. Figure events are deduplicated by label.
type Emitter struct {
	ctx    context.Context
	out    chan<- Event
	logger logger.ILogger

	mu         sync.Mutex
	terminated bool
	figures    map[string]struct{}
	answer     strings.Builder
	download   *DownloadData
}

func NewEmitter(ctx context.Context, out chan<- Event, log logger.ILogger) *Emitter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Emitter{
		ctx:     ctx,
		out:     out,
		logger:  log,
		figures: make(map[string]struct{}),
	}
}

// Emit sends ev in order. It returns false when the event was not delivered:
// the call already terminated or the consumer went away.
func (e *Emitter) Emit(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		e.logger.Warn(logModule, "Event after terminal dropped", map[string]interface{}{
			"type": string(ev.Type),
		})
		return false
	}
	if e.ctx.Err() != nil {
		return false
	}

	select {
	case e.out <- ev:
	case <-e.ctx.Done():
		return false
	}

	switch ev.Type {
	case TypeAnswerChunk, TypeAnswer:
		e.answer.WriteString(ev.Content)
	}
	if ev.Type.IsTerminal() {
		e.terminated = true
	}
	return true
}

func (e *Emitter) Status(msg string) bool {
	return e.Emit(Event{Type: TypeStatus, Content: msg})
}

func (e *Emitter) Thinking(msg string) bool {
	return e.Emit(Event{Type: TypeThinking, Content: msg})
}

// Chunk streams one piece of answer text; empty chunks are skipped
func (e *Emitter) Chunk(text string) bool {
	if text == "" {
		return true
	}
	return e.Emit(Event{Type: TypeAnswerChunk, Content: text})
}

// Answer sends a whole, non-streamed answer
func (e *Emitter) Answer(text string) bool {
	return e.Emit(Event{Type: TypeAnswer, Content: text})
}

func (e *Emitter) Progress(stage string, step, total int, msg string) bool {
	percent := 0
	if total > 0 {
		percent = step * 100 / total
	}
	return e.Emit(Event{
		Type:    TypeProgress,
		Content: msg,
		Data:    ProgressData{Stage: stage, Step: step, Total: total, Percent: percent},
	})
}

// Figure attaches a figure once per call. Repeats report true without
// sending anything.
func (e *Emitter) Figure(fig FigureData) bool {
	e.mu.Lock()
	_, seen := e.figures[fig.Label]
	if !seen {
		e.figures[fig.Label] = struct{}{}
	}
	e.mu.Unlock()
	if seen {
		return true
	}

	return e.Emit(Event{
		Type:     TypeFigure,
		Content:  fig.Label,
		Data:     fig,
		FilePath: fig.ImagePath,
	})
}

// Download announces a generated artifact. The metadata is kept for the
// complete event.
func (e *Emitter) Download(data DownloadData, url, path string) bool {
	ok := e.Emit(Event{
		Type:        TypeDownload,
		Content:     data.Name,
		Data:        data,
		DownloadURL: url,
		FilePath:    path,
	})
	if ok {
		e.mu.Lock()
		d := data
		e.download = &d
		e.mu.Unlock()
	}
	return ok
}

// Complete ends the call successfully
func (e *Emitter) Complete(intent string) bool {
	e.mu.Lock()
	download := e.download
	e.mu.Unlock()
	return e.Emit(Event{
		Type: TypeComplete,
		Data: CompleteData{Intent: intent, Download: download},
	})
}

// Error ends the call with a human-readable cause
func (e *Emitter) Error(msg string) bool {
	return e.Emit(Event{Type: TypeError, Content: msg})
}

// Terminated reports whether a terminal event has been delivered
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// AnswerText is the concatenation of every delivered answer and answer_chunk
func (e *Emitter) AnswerText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.answer.String()
}

// DownloadInfo returns the announced artifact, if any
func (e *Emitter) DownloadInfo() *DownloadData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.download
}
