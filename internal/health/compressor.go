package health

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"healthadvisor/backend/internal/kv"
)

const (
	defaultFetchTimeout   = 2 * time.Second
	defaultFeatureTimeout = 150 * time.Millisecond
	contextCachePrefix    = "ctx:"
)

// Compressor turns a user's raw 7-day history into a Context. Fetch failures
// degrade to missing fields, never to an error.
type Compressor struct {
	store          MetricsStore
	cache          kv.Store
	cacheTTL       time.Duration
	fetchTimeout   time.Duration
	featureTimeout time.Duration
	now            func() time.Time
}

type CompressorOption func(*Compressor)

// WithContextCache serves compressed contexts from store for ttl, keyed by user id.
func WithContextCache(store kv.Store, ttl time.Duration) CompressorOption {
	return func(c *Compressor) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

func WithFetchTimeout(timeout time.Duration) CompressorOption {
	return func(c *Compressor) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

func WithFeatureTimeout(timeout time.Duration) CompressorOption {
	return func(c *Compressor) {
		if timeout > 0 {
			c.featureTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) CompressorOption {
	return func(c *Compressor) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCompressor(store MetricsStore, opts ...CompressorOption) *Compressor {
	c := &Compressor{
		store:          store,
		fetchTimeout:   defaultFetchTimeout,
		featureTimeout: defaultFeatureTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compressor) Compress(ctx context.Context, userID string) Context {
	userID = strings.TrimSpace(userID)
	if c == nil || c.store == nil || userID == "" {
		return Context{}
	}
	if cached, ok := c.cachedContext(ctx, userID); ok {
		return cached
	}

	byKind := c.fetch(ctx, userID, Kinds, c.fetchTimeout)
	compressed := BuildContext(byKind)
	c.storeContext(ctx, userID, compressed)
	return compressed
}

// Features reads meal and glucose history under the feature deadline. If the
// deadline expires the result is empty features, not a partial read.
func (c *Compressor) Features(ctx context.Context, userID string) Features {
	userID = strings.TrimSpace(userID)
	if c == nil || c.store == nil || userID == "" {
		return Features{}
	}
	featureCtx, cancel := context.WithTimeout(ctx, c.featureTimeout)
	defer cancel()

	byKind := c.fetch(featureCtx, userID, []Kind{KindMeal, KindGlucose}, c.featureTimeout)
	if featureCtx.Err() != nil {
		log.Printf("feature read expired user_id=%s timeout=%s", userID, c.featureTimeout)
		return Features{}
	}
	return BuildFeatures(byKind[KindMeal], byKind[KindGlucose], c.now())
}

func (c *Compressor) fetch(ctx context.Context, userID string, kinds []Kind, timeout time.Duration) map[Kind][]Reading {
	since := c.now().Add(-Window)
	var (
		mu     sync.Mutex
		byKind = make(map[Kind][]Reading, len(kinds))
		group  errgroup.Group
	)
	for _, kind := range kinds {
		group.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			readings, err := c.store.Recent(fetchCtx, userID, kind, since)
			if err != nil {
				log.Printf("metrics fetch failed user_id=%s kind=%s err=%v", userID, kind, err)
				return nil
			}
			mu.Lock()
			byKind[kind] = readings
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return byKind
}

func (c *Compressor) cachedContext(ctx context.Context, userID string) (Context, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return Context{}, false
	}
	entry, ok, err := c.cache.Get(ctx, contextCachePrefix+userID)
	if err != nil || !ok {
		return Context{}, false
	}
	var out Context
	if err := json.Unmarshal([]byte(entry.Value), &out); err != nil {
		return Context{}, false
	}
	return out, true
}

func (c *Compressor) storeContext(ctx context.Context, userID string, compressed Context) {
	if c.cache == nil || c.cacheTTL <= 0 || ctx.Err() != nil {
		return
	}
	encoded, err := json.Marshal(compressed)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, contextCachePrefix+userID, string(encoded), c.cacheTTL); err != nil {
		log.Printf("context cache write failed user_id=%s err=%v", userID, err)
	}
}
