package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arclane/politecrawl/internal/clock"
	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/frontier"
	"github.com/arclane/politecrawl/internal/statssink"
	"github.com/arclane/politecrawl/internal/ttlmap"
)

func TestRunDispatchesUntilBudgetExhausted(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	f := frontier.New()
	nf := ttlmap.New(100, time.Minute)
	sink := statssink.New(testLogger())
	s := New(testLogger(), mc, f, nf, sink, 1000.0, 3)

	for i, key := range []string{"a)1", "b)1", "c)1", "d)1", "e)1"} {
		s.QueueWork(crawlwork.WorkItem{Priority: 0, Rand: float64(i), Key: key})
	}

	var processed atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = s.Run(context.Background(), 2, func(ctx context.Context, item crawlwork.WorkItem) error {
			processed.Add(1)
			return nil
		})
		close(done)
	}()

	driveClock(t, mc, 10*time.Millisecond, 500, done)

	if got := processed.Load(); got != 3 {
		t.Fatalf("expected exactly 3 items processed before budget exhaustion, got %d", got)
	}
}
