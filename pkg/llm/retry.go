package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"literature-agent-be/internal/pkg/logger"
)

const (
	defaultMaxRetries     = 2
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// shouldRetry determines if an error is retryable
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return errors.Is(err, ErrLLMUnavailable)
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// RetryingProvider retries opening a stream. Once a stream is open nothing is
// retried, so no chunk is ever delivered twice.
type RetryingProvider struct {
	inner  LLMProvider
	config RetryConfig
	logger logger.ILogger
}

var _ LLMProvider = &RetryingProvider{}

func NewRetryingProvider(inner LLMProvider, config RetryConfig, log logger.ILogger) *RetryingProvider {
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaultInitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RetryingProvider{inner: inner, config: config, logger: log}
}

func (r *RetryingProvider) open(ctx context.Context, op string, fn func() (<-chan StreamChunk, error)) (<-chan StreamChunk, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ch, err := fn()
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == r.config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, r.config)
		r.logger.Warn("LLM", "Stream open failed, retrying", map[string]interface{}{
			"op":      op,
			"attempt": attempt + 1,
			"max":     r.config.MaxRetries,
			"backoff": backoff.String(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (r *RetryingProvider) ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error) {
	return r.open(ctx, "chat", func() (<-chan StreamChunk, error) {
		return r.inner.ChatStream(ctx, history, options...)
	})
}

func (r *RetryingProvider) ChatVisionStream(ctx context.Context, history []Message, prompt string, images []string, options ...Option) (<-chan StreamChunk, error) {
	return r.open(ctx, "vision", func() (<-chan StreamChunk, error) {
		return r.inner.ChatVisionStream(ctx, history, prompt, images, options...)
	})
}

func (r *RetryingProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	ch, err := r.ChatStream(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return Collect(ctx, ch)
}

func (r *RetryingProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return r.Chat(ctx, []Message{{Role: "user", Content: prompt}}, options...)
}
