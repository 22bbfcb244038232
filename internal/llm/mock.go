package llm

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Mock answers locally. Used for demos and tests.
type Mock struct {
	Model string
}

func (m Mock) Complete(_ context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Prompt)
	if question == "" {
		question = "No question provided."
	}
	answer := "Gợi ý: duy trì ăn uống cân đối, uống đủ nước và theo dõi chỉ số đều đặn."
	lowered := strings.ToLower(question)
	if strings.Contains(lowered, "ngủ") || strings.Contains(lowered, "sleep") {
		answer = "Gợi ý: ngủ đủ 7-8 tiếng và đi ngủ cùng một giờ mỗi tối."
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(m.Model)
	}
	if model == "" {
		model = "mock"
	}
	prompt := (utf8.RuneCountInString(req.System) + utf8.RuneCountInString(question) + 3) / 4
	completion := (utf8.RuneCountInString(answer) + 3) / 4
	return Response{
		Text:  answer,
		Model: model,
		Usage: Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
	}, nil
}
