// Package cache holds the two response caches of the advice pipeline: one keyed
// by a caller-supplied idempotency key and one keyed by a content hash of the
// request. Both are namespaces over a kv.Store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"healthadvisor/backend/internal/kv"
)

const (
	idempotencyPrefix = "idem:"
	responsePrefix    = "resp:"

	DefaultIdempotencyTTL = 24 * time.Hour
)

type Cache struct {
	store          kv.Store
	idempotencyTTL time.Duration
}

func New(store kv.Store, idempotencyTTL time.Duration) *Cache {
	if idempotencyTTL <= 0 {
		idempotencyTTL = DefaultIdempotencyTTL
	}
	return &Cache{store: store, idempotencyTTL: idempotencyTTL}
}

// Hash is the hex sha256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ContentKey identifies a semantically identical query.
func ContentKey(userID, intent, contextJSON, message string) string {
	return Hash(strings.Join([]string{userID, intent, Hash(contextJSON), Hash(message)}, "|"))
}

// Idempotency keys are scoped per user so one caller can never replay
// another caller's response.
func idempotencyKey(userID, key string) string {
	return idempotencyPrefix + userID + ":" + key
}

// LookupIdempotent decodes the response stored under an idempotency key into out.
func (c *Cache) LookupIdempotent(ctx context.Context, userID, key string, out any) bool {
	key = strings.TrimSpace(key)
	if c == nil || key == "" {
		return false
	}
	return c.get(ctx, idempotencyKey(userID, key), out)
}

// StoreIdempotent records value for key. Concurrent writers race; last write wins.
func (c *Cache) StoreIdempotent(ctx context.Context, userID, key string, value any) {
	key = strings.TrimSpace(key)
	if c == nil || key == "" {
		return
	}
	c.set(ctx, idempotencyKey(userID, key), value, c.idempotencyTTL)
}

func (c *Cache) Lookup(ctx context.Context, contentKey string, out any) bool {
	if c == nil || contentKey == "" {
		return false
	}
	return c.get(ctx, responsePrefix+contentKey, out)
}

// Store writes value for ttl. A ttl <= 0 means the response must not be cached.
func (c *Cache) Store(ctx context.Context, contentKey string, value any, ttl time.Duration) {
	if c == nil || contentKey == "" || ttl <= 0 {
		return
	}
	c.set(ctx, responsePrefix+contentKey, value, ttl)
}

func (c *Cache) get(ctx context.Context, key string, out any) bool {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("cache read failed key=%s err=%v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(entry.Value), out); err != nil {
		log.Printf("cache entry undecodable key=%s err=%v", key, err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ctx.Err() != nil {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache encode failed key=%s err=%v", key, err)
		return
	}
	if err := c.store.Set(ctx, key, string(encoded), ttl); err != nil {
		log.Printf("cache write failed key=%s err=%v", key, err)
	}
}
