package ollama

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
	"time"

	"literature-agent-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL     string
	ModelName   string
	VisionModel string
	Client      *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName, visionModel string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if visionModel == "" {
		visionModel = modelName
	}
	return &OllamaProvider{
		BaseURL:     baseURL,
		ModelName:   modelName,
		VisionModel: visionModel,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64, no data: prefix
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: o.ModelName}, opts...)
	return o.stream(ctx, toOllamaMessages(history), options)
}

func (o *OllamaProvider) ChatVisionStream(ctx context.Context, history []llm.Message, prompt string, images []string, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.3, Model: o.VisionModel}, opts...)

	encoded := make([]string, 0, len(images))
	for _, path := range images {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(raw))
	}

	messages := toOllamaMessages(history)
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt, Images: encoded})
	return o.stream(ctx, messages, options)
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	ch, err := o.ChatStream(ctx, history, opts...)
	if err != nil {
		return "", err
	}
	return llm.Collect(ctx, ch)
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// Reuse Chat for simplicity as most new LLMs are chat-optimized
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func toOllamaMessages(history []llm.Message) []ollamaMessage {
	out := make([]ollamaMessage, len(history))
	for i, msg := range history {
		out[i] = ollamaMessage{Role: llm.NormalizeRole(msg.Role), Content: msg.Content}
	}
	return out
}

// stream posts to /api/chat and relays the NDJSON reply line by line
func (o *OllamaProvider) stream(ctx context.Context, messages []ollamaMessage, options *llm.Options) (<-chan llm.StreamChunk, error) {
	reqPayload := ollamaChatRequest{
		Model:    options.Model,
		Messages: messages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ollama request failed: %v", llm.ErrLLMUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Provider: "ollama", Code: resp.StatusCode, Body: string(bodyBytes)}
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
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var part ollamaChatResponse
			if err := json.Unmarshal(line, &part); err != nil {
				send(llm.StreamChunk{Err: fmt.Errorf("%w: malformed ollama chunk: %v", llm.ErrLLMUnavailable, err)})
				return
			}
			if part.Error != "" {
				send(llm.StreamChunk{Err: fmt.Errorf("%w: %s", llm.ErrLLMUnavailable, part.Error)})
				return
			}
			if part.Message.Content != "" && !send(llm.StreamChunk{Content: part.Message.Content}) {
				return
			}
			if part.Done {
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
