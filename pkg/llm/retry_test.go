package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	failures int
	err      error
	calls    int
	chunks   []string
}

func (f *flakyProvider) ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	ch := make(chan StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- StreamChunk{Content: c}
	}
	close(ch)
	return ch, nil
}

func (f *flakyProvider) ChatVisionStream(ctx context.Context, history []Message, prompt string, images []string, options ...Option) (<-chan StreamChunk, error) {
	return f.ChatStream(ctx, history, options...)
}

func (f *flakyProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return "", nil
}

func (f *flakyProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return "", nil
}

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryingProviderRecoversBeforeFirstChunk(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: &StatusError{Provider: "test", Code: http.StatusServiceUnavailable}, chunks: []string{"a", "b"}}
	p := NewRetryingProvider(inner, fastRetry(2), nil)

	out, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingProviderIsBounded(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: ErrLLMUnavailable}
	p := NewRetryingProvider(inner, fastRetry(2), nil)

	_, err := p.ChatStream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingProviderSkipsPermanentErrors(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: &StatusError{Provider: "test", Code: http.StatusUnauthorized}}
	p := NewRetryingProvider(inner, fastRetry(3), nil)

	_, err := p.ChatStream(context.Background(), nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Equal(t, 1, inner.calls)
}

func TestCalculateBackoffCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, calculateBackoff(5, cfg))
}

func TestCollectStopsOnError(t *testing.T) {
	ch := make(chan StreamChunk, 3)
	ch <- StreamChunk{Content: "partial"}
	ch <- StreamChunk{Err: ErrLLMUnavailable}
	close(ch)

	out, err := Collect(context.Background(), ch)
	assert.Equal(t, "partial", out)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}
