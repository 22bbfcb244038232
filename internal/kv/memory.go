package kv

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	counters map[string]Counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:  make(map[string]Entry),
		counters: make(map[string]Counter),
		now:      now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Value: value, ExpiresAt: expiryFor(s.now(), ttl)}
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, delta int64, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	counter := s.counters[key]
	if windowElapsed(counter.WindowStart, now, window) {
		counter = Counter{WindowStart: now}
	}
	counter.Value += delta
	s.counters[key] = counter
	return counter, nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
