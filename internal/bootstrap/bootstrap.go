// Package bootstrap assembles the advice pipeline and its stores from
// configuration. The API server and advisectl share it.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"

	"healthadvisor/backend/internal/advisor"
	"healthadvisor/backend/internal/budget"
	"healthadvisor/backend/internal/cache"
	"healthadvisor/backend/internal/config"
	"healthadvisor/backend/internal/db"
	"healthadvisor/backend/internal/fhirstore"
	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/kv"
	"healthadvisor/backend/internal/llm"
	"healthadvisor/backend/internal/persona"
	"healthadvisor/backend/internal/pgstore"
	"healthadvisor/backend/internal/routing"
)

type Runtime struct {
	Config   config.Config
	Pipeline *advisor.Pipeline
	Router   *routing.Router
	Store    kv.Store
	// Pool is nil unless METRICS_BACKEND=postgres.
	Pool *pgxpool.Pool

	closers []func()
}

// Open connects the configured backends and builds the pipeline. On error every
// backend opened so far is closed.
func Open(ctx context.Context, cfg config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}
	if err := rt.build(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context) error {
	cfg := rt.Config
	metrics, profiles, err := rt.openMetrics(ctx)
	if err != nil {
		return err
	}

	rt.Store, err = openStore(cfg)
	if err != nil {
		return err
	}
	if closer, ok := rt.Store.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, func() { _ = closer.Close() })
	}

	rt.Router, err = routing.LoadRouter(cfg.RoutesFile)
	if err != nil {
		return err
	}

	compressor := health.NewCompressor(
		metrics,
		health.WithContextCache(rt.Store, cfg.ContextCacheTTL),
		health.WithFetchTimeout(cfg.MetricsTimeout),
		health.WithFeatureTimeout(cfg.FeatureTimeout),
	)
	rt.Pipeline = advisor.New(advisor.Deps{
		Compressor:      compressor,
		Router:          rt.Router,
		Cache:           cache.New(rt.Store, cfg.IdempotencyTTL),
		Budget:          budget.NewGuard(rt.Store, int64(cfg.DailyTokenBudget)),
		Provider:        llm.NewProvider(cfg),
		Profiles:        profiles,
		DemoMode:        cfg.DemoMode,
		ProviderTimeout: time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
	return nil
}

func (rt *Runtime) openMetrics(ctx context.Context) (health.MetricsStore, persona.Store, error) {
	cfg := rt.Config
	switch cfg.MetricsBackend {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connect failed: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := pgstore.ValidateSchema(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("database schema mismatch: %w", err)
		}
		return pgstore.NewMetricsStore(pool), pgstore.NewProfileStore(pool), nil
	case "fhir":
		var opts []option.ClientOption
		if strings.TrimSpace(cfg.FHIREndpoint) != "" {
			opts = append(opts, option.WithEndpoint(cfg.FHIREndpoint))
		}
		store, err := fhirstore.New(ctx, cfg.FHIRStore, opts...)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("persona prefs are kept in memory with METRICS_BACKEND=fhir")
		return store, persona.NewMemoryStore(), nil
	default:
		return nil, persona.NewMemoryStore(), nil
	}
}

func openStore(cfg config.Config) (kv.Store, error) {
	if cfg.CacheBackend == "sqlite" {
		store, err := kv.OpenSQLite(cfg.CacheSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		return store, nil
	}
	return kv.NewMemoryStore(), nil
}

// StartSweeper evicts expired cache entries on CACHE_SWEEP_SCHEDULE until ctx
// is done.
func (rt *Runtime) StartSweeper(ctx context.Context) error {
	return kv.NewSweeper(rt.Store, rt.Config.CacheSweepSchedule).Start(ctx)
}

// Close releases backends in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
