package advisor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"healthadvisor/backend/internal/budget"
	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
	"healthadvisor/backend/internal/rules"
)

const maxMessageRunes = 2000

var (
	ErrUserRequired    = errors.New("user_id is required")
	ErrMessageRequired = errors.New("message or intent is required")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrMealRequired    = errors.New("meal items or description is required")
)

// ValidationError rejects a request before any pipeline work happens.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Safety string

const (
	SafetyLow  Safety = "low"
	SafetyHigh Safety = "high"
)

// Model names reported when no language model produced the output.
const (
	ModelGuardrail = "guardrail"
	ModelRules     = "rules"
	ModelFallback  = "fallback"
	ModelDemo      = "demo"
)

type ChatRequest struct {
	UserID         string `json:"user_id"`
	Intent         string `json:"intent,omitempty"`
	Message        string `json:"message,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (r ChatRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "user_id", Err: ErrUserRequired}
	}
	if strings.TrimSpace(r.Message) == "" && strings.TrimSpace(r.Intent) == "" {
		return &ValidationError{Field: "message", Err: ErrMessageRequired}
	}
	if utf8.RuneCountInString(r.Message) > maxMessageRunes {
		return &ValidationError{Field: "message", Err: ErrMessageTooLong}
	}
	return nil
}

type ChatResponse struct {
	RequestID      string         `json:"request_id"`
	Intent         intent.Intent  `json:"intent"`
	Model          string         `json:"model"`
	Tokens         int            `json:"tokens"`
	Output         string         `json:"output"`
	Safety         Safety         `json:"safety"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Budget         *budget.Status `json:"budget,omitempty"`
	Cached         bool           `json:"cached"`
}

// cachedReply is what the content-hash cache stores.
type cachedReply struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
	Output string `json:"output"`
}

type MealFeedbackRequest struct {
	UserID string      `json:"user_id"`
	Meal   health.Meal `json:"meal"`
}

func (r MealFeedbackRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "user_id", Err: ErrUserRequired}
	}
	hasItem := false
	for _, item := range r.Meal.Items {
		if strings.TrimSpace(item) != "" {
			hasItem = true
			break
		}
	}
	if !hasItem && strings.TrimSpace(r.Meal.Description) == "" {
		return &ValidationError{Field: "meal", Err: ErrMealRequired}
	}
	return nil
}

type MealFeedbackResponse struct {
	RequestID string    `json:"request_id"`
	Output    string    `json:"output"`
	Tip       rules.Tip `json:"tip"`
	Safety    Safety    `json:"safety"`
}
