/*
Package kv provides the shared mutable state of the advice pipeline: response
and idempotency cache entries and rolling per-user counters.

Two implementations exist: an in-process MemoryStore and a SQLiteStore backed
by modernc.org/sqlite for deployments that want the cache to survive restarts.
Both are safe for concurrent use with last-write-wins semantics.
*/
package kv

import (
	"context"
	"time"
)

// Entry is a cached value. A zero ExpiresAt never expires.
type Entry struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Counter is a windowed accumulator.
type Counter struct {
	Value       int64
	WindowStart time.Time
}

// Store is the narrow contract the pipeline needs from a key-value backend.
type Store interface {
	// Get returns the entry for key. Expired entries are evicted and reported
	// as absent.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set writes value under key. A ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Increment adds delta to the counter at key. If more than window has
	// elapsed since the counter's window started, it is reset to zero with a
	// new window before delta is applied. A delta of 0 reads the counter.
	Increment(ctx context.Context, key string, delta int64, window time.Duration) (Counter, error)

	// Sweep removes every expired entry and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func windowElapsed(start, now time.Time, window time.Duration) bool {
	return start.IsZero() || now.Sub(start) > window
}
