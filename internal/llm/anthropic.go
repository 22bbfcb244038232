package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	// Model replaces route models that are not Claude models. The route table
	// is written in OpenAI model names.
	Model      string
	HTTPClient *http.Client
}

type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

type AnthropicProvider struct {
	msgs         anthropicMessages
	defaultModel string
}

func NewAnthropic(cfg AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := anthropicsdk.NewClient(opts...)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{msgs: &client.Messages, defaultModel: model}, nil
}

func (p *AnthropicProvider) selectModel(requested string) string {
	requested = strings.TrimSpace(requested)
	if strings.HasPrefix(requested, "claude") {
		return requested
	}
	return p.defaultModel
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if p == nil || p.msgs == nil {
		return Response{}, ErrNotConfigured
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	model := p.selectModel(req.Model)
	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropicsdk.MessageParam{anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt))},
		Temperature: param.NewOpt(req.Temperature),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	msg, err := p.msgs.New(ctx, params)
	if err != nil {
		return Response{}, err
	}
	if msg == nil {
		return Response{}, errors.New("anthropic returned no message")
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return Response{}, errors.New("anthropic returned empty content")
	}
	if msg.Model != "" {
		model = string(msg.Model)
	}
	input := int(msg.Usage.InputTokens)
	output := int(msg.Usage.OutputTokens)
	return Response{
		Text:  text,
		Model: model,
		Usage: Usage{PromptTokens: input, CompletionTokens: output, TotalTokens: input + output},
	}, nil
}
