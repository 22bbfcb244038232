package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"healthadvisor/backend/internal/advisor"
	"healthadvisor/backend/internal/config"
	"healthadvisor/backend/internal/intent"
	"healthadvisor/backend/internal/kv"
)

func testConfig() config.Config {
	return config.Config{
		MetricsBackend:     "none",
		LLMProvider:        "mock",
		CacheBackend:       "memory",
		CacheSweepSchedule: "@every 1m",
		DailyTokenBudget:   1000,
		AITimeoutSeconds:   5,
	}
}

func TestOpenWithoutMetricsBackend(t *testing.T) {
	rt, err := Open(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	if rt.Pool != nil {
		t.Fatalf("expected no pool without postgres backend")
	}
	resp, err := rt.Pipeline.Chat(context.Background(), advisor.ChatRequest{UserID: "user-1", Message: "uống bao nhiêu nước là đủ?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Output == "" || resp.Safety != advisor.SafetyLow {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestOpenWithSQLiteCacheAndRoutesFile(t *testing.T) {
	dir := t.TempDir()
	routes := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(routes, []byte("routes:\n  simple_qa:\n    model: gpt-4.1-nano\n"), 0o600); err != nil {
		t.Fatalf("write routes: %v", err)
	}
	cfg := testConfig()
	cfg.CacheBackend = "sqlite"
	cfg.CacheSQLitePath = filepath.Join(dir, "cache.db")
	cfg.RoutesFile = routes

	rt, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	if _, ok := rt.Store.(*kv.SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", rt.Store)
	}
	if got := rt.Router.Route(intent.SimpleQA).Model; got != "gpt-4.1-nano" {
		t.Fatalf("expected routes override, got %q", got)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.StartSweeper(ctx); err != nil {
		t.Fatalf("start sweeper: %v", err)
	}
}

func TestOpenFailsOnBadRoutesFile(t *testing.T) {
	cfg := testConfig()
	cfg.RoutesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing routes file to fail")
	}
}
