package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/arclane/politecrawl/internal/crawlwork"
)

// Run launches n worker goroutines, each calling fn with the item
// GetWork returns, until GetWork reports cancellation. It replaces the
// teacher's Scheduler.Start/worker pairing (internal/engine/scheduler.go:
// a bare sync.WaitGroup plus a hand-rolled idle poll loop) with
// errgroup.Group. Every worker returns nil to the group, so no worker
// cancels another's ctx.
//
// fn's error is counted in the stats sink and logged, and does not stop
// the pool; only GetWork's own cancellation (budget exhaustion or
// ctx.Done) ends a worker's loop.
func (s *Scheduler) Run(ctx context.Context, n int, fn func(context.Context, crawlwork.WorkItem) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				item, err := s.GetWork(ctx)
				if err != nil {
					return nil
				}
				if ferr := fn(ctx, item); ferr != nil {
					s.stats.StatsSum("scheduler.worker_error", 1)
					s.logger.Error("worker callback failed", "key", item.Key, "error", ferr)
				}
				s.WorkDone()
			}
		})
	}

	return g.Wait()
}
