package factory

import (
	"fmt"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/llm/huggingface"
	"literature-agent-be/pkg/llm/ollama"
)

// Config selects and tunes an LLM backend
type Config struct {
	Provider    string
	Model       string
	VisionModel string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
}

// NewLLMProvider builds the configured provider wrapped with bounded stream-open retries
func NewLLMProvider(cfg Config, log logger.ILogger) (llm.LLMProvider, error) {
	var provider llm.LLMProvider
	switch cfg.Provider {
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		provider = ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.VisionModel, cfg.Timeout)
	case "huggingface":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		provider = huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.VisionModel, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	return llm.NewRetryingProvider(provider, retry, log), nil
}
