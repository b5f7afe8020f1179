// Package scheduler binds the sync orchestrator to its gocron timetable.
// All times are Asia/Taipei.
package scheduler

import (
	"context"
	"log"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron"

	"go_stocksync/services/sync"
)

// Scheduler manages the scheduled sync jobs
type Scheduler struct {
	cron         *gocron.Scheduler
	orchestrator *sync.Orchestrator
}

// NewScheduler creates a scheduler anchored to the given location, which
// should be Asia/Taipei in production.
func NewScheduler(orchestrator *sync.Orchestrator, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:         gocron.NewScheduler(loc),
		orchestrator: orchestrator,
	}
}

// Start registers all jobs and starts the timer loop asynchronously.
func (s *Scheduler) Start() {
	log.Println("[Scheduler] Starting scheduler...")

	// Taiwan daily prices after market close, Mon-Fri 14:30
	s.cron.Cron("30 14 * * 1-5").Do(func() {
		s.runSafe("tw-prices", func(ctx context.Context) {
			s.orchestrator.SyncPrices(ctx)
		})
	})

	// Indicator recompute after the price sync settles, Mon-Fri 15:00
	s.cron.Cron("0 15 * * 1-5").Do(func() {
		s.runSafe("indicators", func(ctx context.Context) {
			s.orchestrator.SyncIndicators(ctx)
		})
	})

	// Full roster refresh weekly, Sunday 02:00
	s.cron.Cron("0 2 * * 0").Do(func() {
		s.runSafe("stock-list", func(ctx context.Context) {
			s.orchestrator.SyncStocks(ctx)
		})
	})

	// US daily prices after the US close, Tue-Sat 06:00 Taipei
	s.cron.Cron("0 6 * * 2-6").Do(func() {
		s.runSafe("us-prices", func(ctx context.Context) {
			s.orchestrator.SyncPrices(ctx)
		})
	})

	// Durable cache sweep daily at 03:00
	s.cron.Cron("0 3 * * *").Do(func() {
		s.runSafe("cache-sweep", func(ctx context.Context) {
			s.orchestrator.ClearExpiredCache(ctx)
		})
	})

	// Cache warmup every 6 hours
	s.cron.Every(6).Hours().Do(func() {
		s.runSafe("cache-warmup", func(ctx context.Context) {
			s.orchestrator.WarmupCache(ctx)
		})
	})

	s.cron.StartAsync()
	log.Println("[Scheduler] Scheduler started successfully")
}

// Stop stops the timer loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Scheduler] Scheduler stopped")
}

// runSafe executes one job with panic recovery so a failing job never kills
// the timer loop.
func (s *Scheduler) runSafe(name string, job func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] Job %s panicked: %v\n%s", name, r, debug.Stack())
		}
	}()

	log.Printf("[Scheduler] Running job %s", name)
	start := time.Now()
	job(context.Background())
	log.Printf("[Scheduler] Job %s finished in %s", name, time.Since(start).Round(time.Millisecond))
}
