// Package llm adapts hosted text-completion services to the single call the
// advice pipeline makes on its freeform path.
package llm

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"healthadvisor/backend/internal/config"
)

var ErrNotConfigured = errors.New("llm provider is not configured")

type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider completes one prompt. Callers own timeouts through ctx; adapters
// never retry.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Unconfigured fails every call with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

// NewProvider builds the provider selected by LLM_PROVIDER. Missing
// credentials yield an Unconfigured provider so the pipeline degrades to its
// canned replies instead of failing startup.
func NewProvider(cfg config.Config) Provider {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	httpClient := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	var (
		provider Provider
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "mock":
		return Mock{}
	case "anthropic":
		provider, err = NewAnthropic(AnthropicConfig{
			APIKey:     cfg.AnthropicAPIKey,
			BaseURL:    cfg.AnthropicBaseURL,
			HTTPClient: httpClient,
		})
	default:
		provider, err = NewOpenAI(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
		})
	}
	if err != nil {
		log.Printf("llm provider disabled provider=%s err=%v", cfg.LLMProvider, err)
		return Unconfigured{}
	}
	return provider
}
