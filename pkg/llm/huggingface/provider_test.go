package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"literature-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sse(w http.ResponseWriter, parts ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range parts {
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", p)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestChatStreamParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		sse(w, "The ", "answer", ".")
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("secret", srv.URL, "qwen", "", time.Second)
	out, err := p.Generate(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "The answer.", out)
}

func TestChatVisionStreamSendsContentParts(t *testing.T) {
	img := filepath.Join(t.TempDir(), "figure_1.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nrest"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string            `json:"role"`
				Content []json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "qwen-vl", raw.Model)
		require.Len(t, raw.Messages, 1)
		require.Len(t, raw.Messages[0].Content, 2)
		assert.True(t, strings.Contains(string(raw.Messages[0].Content[1]), "data:image/png;base64,"))
		sse(w, "ok")
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("k", srv.URL, "qwen", "qwen-vl", time.Second)
	ch, err := p.ChatVisionStream(context.Background(), nil, "what is shown", []string{img})
	require.NoError(t, err)
	out, err := llm.Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestChatStreamAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("bad", srv.URL, "qwen", "", time.Second)
	_, err := p.ChatStream(context.Background(), nil)
	assert.ErrorIs(t, err, llm.ErrLLMUnavailable)
}
