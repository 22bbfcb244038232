package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func storeFactories(t *testing.T) map[string]func(clock *fakeClock) Store {
	t.Helper()
	return map[string]func(clock *fakeClock) Store{
		"memory": func(clock *fakeClock) Store {
			return NewMemoryStoreWithClock(clock.Now)
		},
		"sqlite": func(clock *fakeClock) Store {
			store, err := OpenSQLiteWithClock(filepath.Join(t.TempDir(), "cache.db"), clock.Now)
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func TestStoreReturnsExactBytesUntilExpiry(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			store := factory(clock)
			ctx := context.Background()
			value := "Bữa ăn: phở bò\n- gợi ý…"

			if err := store.Set(ctx, "resp:a", value, time.Hour); err != nil {
				t.Fatalf("set: %v", err)
			}
			entry, ok, err := store.Get(ctx, "resp:a")
			if err != nil || !ok {
				t.Fatalf("expected hit, ok=%v err=%v", ok, err)
			}
			if entry.Value != value {
				t.Fatalf("expected exact value, got %q", entry.Value)
			}

			clock.Advance(time.Hour)
			if _, ok, err := store.Get(ctx, "resp:a"); err != nil || ok {
				t.Fatalf("expected expired entry to be absent, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStoreZeroTTLNeverExpires(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			store := factory(clock)
			ctx := context.Background()
			if err := store.Set(ctx, "k", "v", 0); err != nil {
				t.Fatalf("set: %v", err)
			}
			clock.Advance(365 * 24 * time.Hour)
			if _, ok, _ := store.Get(ctx, "k"); !ok {
				t.Fatalf("expected entry without ttl to persist")
			}
		})
	}
}

func TestStoreSetOverwritesLastWriteWins(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(newFakeClock())
			ctx := context.Background()
			_ = store.Set(ctx, "k", "first", time.Minute)
			_ = store.Set(ctx, "k", "second", time.Minute)
			entry, ok, _ := store.Get(ctx, "k")
			if !ok || entry.Value != "second" {
				t.Fatalf("expected last write to win, got %+v ok=%v", entry, ok)
			}
		})
	}
}

func TestStoreIncrementResetsAfterWindow(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			store := factory(clock)
			ctx := context.Background()
			window := 24 * time.Hour

			first, err := store.Increment(ctx, "budget:u1", 400, window)
			if err != nil {
				t.Fatalf("increment: %v", err)
			}
			if first.Value != 400 {
				t.Fatalf("expected 400, got %d", first.Value)
			}

			clock.Advance(23 * time.Hour)
			second, _ := store.Increment(ctx, "budget:u1", 100, window)
			if second.Value != 500 {
				t.Fatalf("expected 500 inside window, got %d", second.Value)
			}

			clock.Advance(24*time.Hour - 23*time.Hour + time.Second)
			read, _ := store.Increment(ctx, "budget:u1", 0, window)
			if read.Value != 0 {
				t.Fatalf("expected counter reset after window, got %d", read.Value)
			}
			if !read.WindowStart.Equal(clock.Now()) {
				t.Fatalf("expected new window start %s, got %s", clock.Now(), read.WindowStart)
			}
		})
	}
}

func TestStoreSweepRemovesExpired(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			store := factory(clock)
			ctx := context.Background()
			_ = store.Set(ctx, "short", "v", time.Minute)
			_ = store.Set(ctx, "long", "v", time.Hour)
			_ = store.Set(ctx, "forever", "v", 0)
			clock.Advance(2 * time.Minute)

			removed, err := store.Sweep(ctx)
			if err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 removed, got %d", removed)
			}
			if _, ok, _ := store.Get(ctx, "long"); !ok {
				t.Fatalf("expected unexpired entry to survive sweep")
			}
		})
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			_ = store.Set(ctx, key, "v", time.Minute)
			_, _, _ = store.Get(ctx, key)
			_, _ = store.Increment(ctx, "counter", 1, time.Hour)
		}(i)
	}
	wg.Wait()
	counter, _ := store.Increment(ctx, "counter", 0, time.Hour)
	if counter.Value != 32 {
		t.Fatalf("expected 32 increments, got %d", counter.Value)
	}
}

func TestSweeperRunOnce(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStoreWithClock(clock.Now)
	_ = store.Set(context.Background(), "k", "v", time.Second)
	clock.Advance(time.Minute)

	sweeper := NewSweeper(store, "")
	if removed := sweeper.RunOnce(context.Background()); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}
}

func TestSweeperRejectsInvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), "not a schedule")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sweeper.Start(ctx); err == nil {
		t.Fatalf("expected invalid schedule to fail")
	}
}
