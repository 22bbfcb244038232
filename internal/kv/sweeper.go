package kv

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 5m"

// Sweeper periodically evicts expired entries on a cron schedule. Lookups
// still evict lazily; the sweeper only bounds the memory held by keys that are
// never read again.
type Sweeper struct {
	store    Store
	schedule string
	cron     *cron.Cron
}

func NewSweeper(store Store, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{store: store, schedule: schedule}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Printf("[cache-sweeper] started schedule=%q", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Sweeper) RunOnce(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx)
	if err != nil {
		log.Printf("[cache-sweeper] sweep failed: %v", err)
		return 0
	}
	if removed > 0 {
		log.Printf("[cache-sweeper] evicted %d expired entries", removed)
	}
	return removed
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
