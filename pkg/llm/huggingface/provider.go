package huggingface

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"literature-agent-be/pkg/llm"
)

type HuggingFaceProvider struct {
	apiKey      string
	baseURL     string
	model       string
	visionModel string
	client      *http.Client
}

var _ llm.LLMProvider = &HuggingFaceProvider{}

// Request Payload Structure (OpenAI Compatible)
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

// chatMessage content is a string, or a list of parts for vision requests
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewHuggingFaceProvider(apiKey, baseURL, model, visionModel string, timeout time.Duration) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1" // Default Router URL
	}
	if visionModel == "" {
		visionModel = model
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HuggingFaceProvider{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		visionModel: visionModel,
		client:      &http.Client{Timeout: timeout},
	}
}

func (p *HuggingFaceProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, MaxTokens: 1024}, options...)

	messages := make([]chatMessage, len(history))
	for i, m := range history {
		messages[i] = chatMessage{Role: llm.NormalizeRole(m.Role), Content: m.Content}
	}
	return p.stream(ctx, opts, messages)
}

func (p *HuggingFaceProvider) ChatVisionStream(ctx context.Context, history []llm.Message, prompt string, images []string, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.visionModel, MaxTokens: 1024}, options...)

	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, path := range images {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + http.DetectContentType(raw) + ";base64," + base64.StdEncoding.EncodeToString(raw)},
		})
	}

	messages := make([]chatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, chatMessage{Role: llm.NormalizeRole(m.Role), Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: parts})
	return p.stream(ctx, opts, messages)
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	ch, err := p.ChatStream(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return llm.Collect(ctx, ch)
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	// Wrap single prompt into a user message
	messages := []llm.Message{
		{Role: "user", Content: prompt},
	}
	return p.Chat(ctx, messages, options...)
}

// stream posts to /chat/completions with stream=true and parses the SSE reply
func (p *HuggingFaceProvider) stream(ctx context.Context, opts *llm.Options, messages []chatMessage) (<-chan llm.StreamChunk, error) {
	reqBody := chatRequest{
		Model:     opts.Model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
		Stream:    true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: huggingface request failed: %v", llm.ErrLLMUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Provider: "huggingface", Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		send := func(chunk llm.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip non-data lines
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk streamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip invalid JSON lines
				continue
			}
			if chunk.Error != nil {
				send(llm.StreamChunk{Err: fmt.Errorf("%w: %s", llm.ErrLLMUnavailable, chunk.Error.Message)})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" && !send(llm.StreamChunk{Content: choice.Delta.Content}) {
				return
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				send(llm.StreamChunk{Err: ctx.Err()})
				return
			}
			send(llm.StreamChunk{Err: fmt.Errorf("%w: read stream: %v", llm.ErrLLMUnavailable, err)})
		}
	}()
	return out, nil
}
