package llm

import (
	"context"
	"errors"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthadvisor/backend/internal/config"
)

type fakeChatCompletions struct {
	resp     *openai.ChatCompletion
	err      error
	captured openai.ChatCompletionNewParams
}

func (f *fakeChatCompletions) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.captured = params
	return f.resp, f.err
}

type fakeMessages struct {
	msg      *anthropicsdk.Message
	err      error
	captured anthropicsdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropicsdk.MessageNewParams, _ ...anthropicoption.RequestOption) (*anthropicsdk.Message, error) {
	f.captured = params
	return f.msg, f.err
}

func TestOpenAIProviderMapsRequestAndResponse(t *testing.T) {
	fake := &fakeChatCompletions{resp: &openai.ChatCompletion{
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "stop",
			Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "  Uống thêm nước nhé.  "},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 40, CompletionTokens: 10, TotalTokens: 50},
	}}
	provider := &OpenAIProvider{completions: fake}

	resp, err := provider.Complete(context.Background(), Request{
		Model:       "gpt-4o-mini",
		System:      "system prompt",
		Prompt:      "user prompt",
		Temperature: 0.3,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Uống thêm nước nhé.", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 50, resp.Usage.TotalTokens)

	require.Len(t, fake.captured.Messages, 2)
	assert.Equal(t, "gpt-4o-mini", string(fake.captured.Model))
	require.True(t, fake.captured.Temperature.Valid())
	assert.Equal(t, 0.3, fake.captured.Temperature.Value)
	require.True(t, fake.captured.MaxCompletionTokens.Valid())
	assert.Equal(t, int64(300), fake.captured.MaxCompletionTokens.Value)
}

func TestOpenAIProviderSurfacesFailures(t *testing.T) {
	provider := &OpenAIProvider{completions: &fakeChatCompletions{err: errors.New("boom")}}
	_, err := provider.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)

	provider = &OpenAIProvider{completions: &fakeChatCompletions{resp: &openai.ChatCompletion{}}}
	_, err = provider.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{APIKey: "   "})
	require.ErrorIs(t, err, ErrNotConfigured)

	provider, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	require.NotNil(t, provider.completions)
}

func TestAnthropicProviderMapsRequestAndResponse(t *testing.T) {
	fake := &fakeMessages{msg: &anthropicsdk.Message{
		Model: anthropicsdk.Model("claude-3-5-haiku-latest"),
		Content: []anthropicsdk.ContentBlockUnion{
			{Type: "text", Text: "Hãy đi bộ nhẹ "},
			{Type: "text", Text: "sau bữa ăn."},
		},
		Usage: anthropicsdk.Usage{InputTokens: 30, OutputTokens: 12},
	}}
	provider := &AnthropicProvider{msgs: fake, defaultModel: defaultAnthropicModel}

	resp, err := provider.Complete(context.Background(), Request{
		Model:       "gpt-4o",
		System:      "system prompt",
		Prompt:      "user prompt",
		Temperature: 0.6,
		MaxTokens:   700,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hãy đi bộ nhẹ sau bữa ăn.", resp.Text)
	assert.Equal(t, 42, resp.Usage.TotalTokens)

	assert.Equal(t, defaultAnthropicModel, string(fake.captured.Model))
	assert.Equal(t, int64(700), fake.captured.MaxTokens)
	require.Len(t, fake.captured.System, 1)
	assert.Equal(t, "system prompt", fake.captured.System[0].Text)
	require.Len(t, fake.captured.Messages, 1)
	assert.Equal(t, 0.6, fake.captured.Temperature.Value)
}

func TestAnthropicProviderKeepsClaudeModels(t *testing.T) {
	provider := &AnthropicProvider{defaultModel: defaultAnthropicModel}
	assert.Equal(t, "claude-sonnet-4-5", provider.selectModel("claude-sonnet-4-5"))
	assert.Equal(t, defaultAnthropicModel, provider.selectModel(""))
}

func TestAnthropicProviderRejectsEmptyContent(t *testing.T) {
	provider := &AnthropicProvider{msgs: &fakeMessages{msg: &anthropicsdk.Message{}}, defaultModel: defaultAnthropicModel}
	_, err := provider.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
}

func TestNewProviderSelection(t *testing.T) {
	_, isMock := NewProvider(config.Config{LLMProvider: "mock"}).(Mock)
	assert.True(t, isMock)

	_, unconfigured := NewProvider(config.Config{LLMProvider: "openai"}).(Unconfigured)
	assert.True(t, unconfigured, "missing key should disable the provider")

	_, unconfigured = NewProvider(config.Config{LLMProvider: "anthropic"}).(Unconfigured)
	assert.True(t, unconfigured)

	_, isAnthropic := NewProvider(config.Config{LLMProvider: "anthropic", AnthropicAPIKey: "key"}).(*AnthropicProvider)
	assert.True(t, isAnthropic)

	_, err := Unconfigured{}.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMockIsDeterministic(t *testing.T) {
	req := Request{Model: "gpt-4o-mini", System: "s", Prompt: "Tôi nên ngủ mấy tiếng?"}
	a, err := Mock{}.Complete(context.Background(), req)
	require.NoError(t, err)
	b, _ := Mock{}.Complete(context.Background(), req)
	assert.Equal(t, a, b)
	assert.Contains(t, a.Text, "ngủ")
	assert.Equal(t, "gpt-4o-mini", a.Model)
	assert.Positive(t, a.Usage.TotalTokens)
}
