package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries and counters in a single SQLite file. Writes
// are serialised through mu because SQLite allows one writer at a time.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	return OpenSQLiteWithClock(path, time.Now)
}

func OpenSQLiteWithClock(path string, now func() time.Time) (*SQLiteStore, error) {
	if now == nil {
		now = time.Now
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache db: %w", err)
	}
	store := &SQLiteStore{db: conn, path: path, now: now}
	if err := store.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to init cache schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create kv_entries table: %w", err)
	}
	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_kv_entries_expires
		ON kv_entries(expires_at)
	`); err != nil {
		return fmt.Errorf("failed to create kv_entries expiry index: %w", err)
	}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_counters (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			window_start INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create kv_counters table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		value     string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv_entries WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry := Entry{Key: key, Value: value, ExpiresAt: fromUnixNano(expiresAt)}
	if entry.expired(s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ? AND expires_at = ?`, key, expiresAt); err != nil {
			return Entry{}, false, err
		}
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key,
		value,
		toUnixNano(expiryFor(s.now(), ttl)),
	)
	return err
}

func (s *SQLiteStore) Increment(ctx context.Context, key string, delta int64, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Counter{}, err
	}
	defer tx.Rollback()

	now := s.now()
	var (
		value       int64
		windowStart int64
	)
	err = tx.QueryRowContext(ctx, `SELECT value, window_start FROM kv_counters WHERE key = ?`, key).Scan(&value, &windowStart)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Counter{}, err
	}
	counter := Counter{Value: value, WindowStart: fromUnixNano(windowStart)}
	if windowElapsed(counter.WindowStart, now, window) {
		counter = Counter{WindowStart: now}
	}
	counter.Value += delta

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO kv_counters (key, value, window_start) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, window_start = excluded.window_start`,
		key,
		counter.Value,
		toUnixNano(counter.WindowStart),
	); err != nil {
		return Counter{}, err
	}
	if err := tx.Commit(); err != nil {
		return Counter{}, err
	}
	return counter, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM kv_entries WHERE expires_at > 0 AND expires_at <= ?`,
		s.now().UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}
