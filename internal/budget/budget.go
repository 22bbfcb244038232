package budget

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"healthadvisor/backend/internal/kv"
)

const (
	Window    = 24 * time.Hour
	keyPrefix = "budget:"
)

type Status struct {
	Used     int64 `json:"used"`
	Limit    int64 `json:"limit"`
	Exceeded bool  `json:"exceeded"`
}

// Guard enforces a rolling per-user daily token budget.
type Guard struct {
	store kv.Store
	limit int64
}

func NewGuard(store kv.Store, dailyLimit int64) *Guard {
	return &Guard{store: store, limit: dailyLimit}
}

// Estimate approximates the token cost of the given prompt parts as one token
// per four code points, rounded up.
func Estimate(parts ...string) int64 {
	runes := 0
	for _, part := range parts {
		runes += utf8.RuneCountInString(part)
	}
	return int64((runes + 3) / 4)
}

// Check reports whether spending estimated more tokens would exceed the budget.
// A store failure is logged and treated as within budget.
func (g *Guard) Check(ctx context.Context, userID string, estimated int64) Status {
	status := Status{Limit: g.limit}
	counter, err := g.store.Increment(ctx, keyPrefix+userID, 0, Window)
	if err != nil {
		log.Printf("budget read failed user_id=%s err=%v", userID, err)
		return status
	}
	status.Used = counter.Value
	status.Exceeded = counter.Value+estimated > g.limit
	return status
}

// Record adds tokens to the user's usage in the current window.
func (g *Guard) Record(ctx context.Context, userID string, tokens int64) Status {
	status := Status{Limit: g.limit}
	if tokens < 0 {
		tokens = 0
	}
	counter, err := g.store.Increment(ctx, keyPrefix+userID, tokens, Window)
	if err != nil {
		log.Printf("budget write failed user_id=%s tokens=%d err=%v", userID, tokens, err)
		return status
	}
	status.Used = counter.Value
	status.Exceeded = counter.Value >= g.limit
	return status
}
