// Package scheduler implements spec §4.1's admission control: the
// getWork algorithm that enforces a global per-host QPS ceiling, bounds
// head-of-line blocking, and honors a total URL budget. Grounded on the
// teacher's internal/engine/scheduler.go (worker pool shape,
// idleWorkers counter, per-logger-per-worker convention) generalized
// from the teacher's ad-hoc per-domain throttle map to the spec's
// exact (nextFetch, deltaT, HOL, budget) algorithm, with the timing
// surface routed through internal/clock so it is test-controllable.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arclane/politecrawl/internal/clock"
	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/frontier"
	"github.com/arclane/politecrawl/internal/statssink"
	"github.com/arclane/politecrawl/internal/ttlmap"
)

// hol is the head-of-line sleep bound of spec §4.1 step 4.
const hol = 3 * time.Second

// unlimited marks a Scheduler with no URL budget.
const unlimited = -1

// Scheduler is the process-wide admission controller of spec §3's
// SchedulerState, bundling the frontier, the NextFetchMap, and the
// budget/idle bookkeeping behind one mutex-guarded critical section
// (spec §5: "the critical section from read nextFetch[host] through
// write nextFetch[host] MUST be atomic").
type Scheduler struct {
	logger *slog.Logger
	clock  clock.Clock
	q      *frontier.Frontier
	next   *ttlmap.NextFetchMap
	stats  statssink.Sink

	deltaT time.Duration

	mu              sync.Mutex
	cond            *sync.Cond
	remainingBudget int // unlimited (-1) or >= 0
	awaitingWork    int
	dispensed       int
	closed          bool
}

// New creates a Scheduler. maxCrawledURLs of 0 means unlimited (spec
// §6's Config.Crawl.MaxCrawledUrls convention).
func New(logger *slog.Logger, clk clock.Clock, q *frontier.Frontier, next *ttlmap.NextFetchMap, stats statssink.Sink, maxHostQPS float64, maxCrawledURLs int) *Scheduler {
	budget := unlimited
	if maxCrawledURLs > 0 {
		budget = maxCrawledURLs
	}
	s := &Scheduler{
		logger:          logger.With("component", "scheduler"),
		clock:           clk,
		q:               q,
		next:            next,
		stats:           stats,
		deltaT:          time.Duration(float64(time.Second) / maxHostQPS),
		remainingBudget: budget,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// QueueWork inserts an item with no rate check (spec §4.1 queueWork).
func (s *Scheduler) QueueWork(item crawlwork.WorkItem) {
	s.q.Push(item)
	s.wake()
}

// RequeueWork re-inserts item after the caller has bumped rand by 0.5
// and optionally called UpdatePriority (spec §4.1 requeueWork).
func (s *Scheduler) RequeueWork(item crawlwork.WorkItem) {
	s.q.Push(item)
	s.wake()
}

func (s *Scheduler) wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// UpdatePriority implements spec §4.1's drift-correction loop.
func (s *Scheduler) UpdatePriority(priority int, rand float64) (int, float64) {
	return crawlwork.UpdatePriority(priority, rand)
}

// GetWork implements the full admission-control algorithm of spec
// §4.1. It blocks until an item is dispensed, the budget is
// exhausted (ErrBudgetExhausted), or ctx is cancelled — in which case
// ctx.Err() is returned unclassified, per spec §4.2 guarantee 6 /
// §7 tier 3.
func (s *Scheduler) GetWork(ctx context.Context) (crawlwork.WorkItem, error) {
	unblock := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-unblock:
		}
	}()
	defer close(unblock)

	for {
		item, ok := s.q.TryPop()
		if !ok {
			// Step 1: the increment only happens on the empty path so
			// awaitingWork isn't racy against a concurrent put.
			s.mu.Lock()
			s.awaitingWork++
			leave := s.stats.CoroutineState("scheduler.awaiting_work")
			for s.q.Len() == 0 && ctx.Err() == nil {
				s.cond.Wait()
			}
			s.awaitingWork--
			leave()
			cancelled := ctx.Err() != nil
			s.mu.Unlock()
			if cancelled {
				return crawlwork.WorkItem{}, ctx.Err()
			}
			continue
		}

		out, err, retry := s.admit(ctx, item)
		if retry {
			continue
		}
		return out, err
	}
}

// admit runs steps 2-5 of getWork for a single dequeued item. retry is
// true when the caller should loop back to step 1 (HOL requeue).
func (s *Scheduler) admit(ctx context.Context, item crawlwork.WorkItem) (out crawlwork.WorkItem, err error, retry bool) {
	s.mu.Lock()

	// Step 2: budget exhaustion is cancellation, never a classified failure.
	if s.remainingBudget != unlimited && s.remainingBudget <= 0 {
		s.mu.Unlock()
		s.q.Push(item)
		s.wake() // a worker parked in GetWork's cond.Wait() must be woken on this re-push too.
		s.stats.StatsSum("scheduler.budget_exhausted", 1)
		return crawlwork.WorkItem{}, crawlwork.ErrBudgetExhausted, false
	}

	// Step 3.
	host := crawlwork.SplitHost(item.Key)
	now := s.clock.Now()
	var dt time.Duration
	if nf, ok := s.next.Get(host); ok {
		if d := nf.Sub(now); d > 0 {
			dt = d
		}
	}

	// Step 4: HOL policy.
	if dt > hol {
		s.mu.Unlock()
		s.stats.StatsSum("scheduler.hol_yield", 1)
		if serr := s.clock.Sleep(ctx, hol); serr != nil {
			return crawlwork.WorkItem{}, serr, false
		}
		s.q.Push(item) // preserves the triple unchanged; HOL requeue is not a failure.
		s.wake()
		return crawlwork.WorkItem{}, nil, true
	}

	// Step 5: normal policy. The reservation is written before the
	// sleep so concurrent workers observe it and do not double-book
	// the slot (spec §4.1 rationale).
	s.next.Set(host, now.Add(dt).Add(s.deltaT))
	if s.remainingBudget != unlimited {
		s.remainingBudget--
	}
	s.mu.Unlock()

	if serr := s.clock.Sleep(ctx, dt); serr != nil {
		s.mu.Lock()
		if s.remainingBudget != unlimited {
			s.remainingBudget++
		}
		s.mu.Unlock()
		return crawlwork.WorkItem{}, serr, false
	}

	s.mu.Lock()
	s.dispensed++
	s.mu.Unlock()

	return item, nil, false
}

// WorkDone signals one dispensed item completed (spec §4.1 workDone).
func (s *Scheduler) WorkDone() {
	s.mu.Lock()
	s.dispensed--
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Close waits until every dispensed item has been acknowledged via
// WorkDone (spec §4.1 close).
func (s *Scheduler) Close(ctx context.Context) error {
	unblock := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-unblock:
		}
	}()
	defer close(unblock)

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.dispensed > 0 && ctx.Err() == nil {
		s.cond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.closed = true
	s.q.Close()
	return nil
}

func (s *Scheduler) SetRidealong(key string, r crawlwork.Ridealong) { s.q.SetRidealong(key, r) }
func (s *Scheduler) GetRidealong(key string) (crawlwork.Ridealong, bool) { return s.q.GetRidealong(key) }
func (s *Scheduler) DelRidealong(key string) { s.q.DelRidealong(key) }

// QSize returns the number of items currently queued (not in-flight).
func (s *Scheduler) QSize() int { return s.q.Len() }

// Done reports whether the crawl is idle: every worker is blocked
// awaiting work and the queue is empty (spec §4.1 done).
func (s *Scheduler) Done(workerCount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingWork == workerCount && s.q.Len() == 0
}

// Summarize produces a human-readable dump of queue contents — counts
// by priority band, top hosts by pending count, a retry-count
// histogram — mirroring cocrawler's scheduler.summarize(). A size
// mismatch between the live queue (plus in-flight items) and the
// ridealong table is the fatal tier-3 condition of spec §7: the
// invariant R1/R2 has been broken and the caller should abort.
func (s *Scheduler) Summarize() (string, error) {
	items := s.q.Snapshot()
	ridealong := s.q.RidealongSnapshot()

	s.mu.Lock()
	inFlight := s.dispensed
	s.mu.Unlock()

	if expected := len(items) + inFlight; expected != len(ridealong) {
		return "", fmt.Errorf("%w: queue(%d)+in-flight(%d)=%d, ridealong=%d",
			crawlwork.ErrRidealongMismatch, len(items), inFlight, expected, len(ridealong))
	}

	byPriority := make(map[int]int)
	byHost := make(map[string]int)
	byTries := make(map[int]int)
	for _, it := range items {
		byPriority[it.Priority]++
		byHost[crawlwork.SplitHost(it.Key)]++
		if r, ok := ridealong[it.Key]; ok {
			byTries[r.Tries]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "queue: %d pending, %d in-flight, %d ridealong entries\n", len(items), inFlight, len(ridealong))

	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	for _, p := range priorities {
		fmt.Fprintf(&b, "  priority %d: %d items\n", p, byPriority[p])
	}

	type hostCount struct {
		host  string
		count int
	}
	hosts := make([]hostCount, 0, len(byHost))
	for h, c := range byHost {
		hosts = append(hosts, hostCount{h, c})
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].count != hosts[j].count {
			return hosts[i].count > hosts[j].count
		}
		return hosts[i].host < hosts[j].host
	})
	if len(hosts) > 10 {
		hosts = hosts[:10]
	}
	for _, h := range hosts {
		fmt.Fprintf(&b, "  host %s: %d pending\n", h.host, h.count)
	}

	tries := make([]int, 0, len(byTries))
	for t := range byTries {
		tries = append(tries, t)
	}
	sort.Ints(tries)
	for _, t := range tries {
		fmt.Fprintf(&b, "  tries=%d: %d items\n", t, byTries[t])
	}

	return b.String(), nil
}

// IsClosed reports whether Close has completed.
func (s *Scheduler) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
