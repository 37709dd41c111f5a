package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrLLMUnavailable wraps transport and auth failures of a provider
var ErrLLMUnavailable = errors.New("llm unavailable")

// StatusError is a non-200 reply from a provider endpoint
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrLLMUnavailable
}

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// StreamChunk is one piece of streamed model output. A chunk with a non-nil
// Err is the last one on its channel.
type StreamChunk struct {
	Content string
	Err     error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// ApplyOptions resolves opts over the given defaults
func ApplyOptions(defaults Options, opts ...Option) *Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// ChatStream streams the reply to a chat history. The returned error covers
	// opening the stream only; later failures arrive as a chunk with Err set.
	ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error)

	// ChatVisionStream is ChatStream with images (file paths) attached to the
	// final user prompt
	ChatVisionStream(ctx context.Context, history []Message, prompt string, images []string, options ...Option) (<-chan StreamChunk, error)

	// Chat sends a chat history to the model and returns the whole response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// Collect drains a stream into one string
func Collect(ctx context.Context, ch <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return sb.String(), nil
			}
			if chunk.Err != nil {
				return sb.String(), chunk.Err
			}
			sb.WriteString(chunk.Content)
		}
	}
}

// NormalizeRole maps stored roles onto provider roles
func NormalizeRole(role string) string {
	if role == "model" {
		return "assistant"
	}
	return role
}
