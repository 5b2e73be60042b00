// Package statssink implements the "Stats sink" consumed interface of
// spec §6 (stats_sum, coroutine_state, record_latency), plus a
// Prometheus-text exposition endpoint in the style of the teacher's
// internal/observability/metrics.go (hand-rolled atomic counters and
// manual text formatting — the teacher itself does not pull in
// prometheus/client_golang for this, so neither does this port; see
// DESIGN.md).
package statssink

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Sink is the interface the scheduler and fetcher depend on. Named
// methods mirror the Python source's module-level functions
// (stats.stats_sum, stats.coroutine_state, stats.record_latency) one
// for one so the port reads the same way at every call site.
type Sink interface {
	// StatsSum adds n to a named running total.
	StatsSum(name string, n int64)
	// CoroutineState marks entry into a named scoped state (e.g.
	// "awaiting work", "scheduler HOL sleep") and returns a function
	// to call on exit. Used to track how many workers are currently
	// in each wait state.
	CoroutineState(name string) (leave func())
	// RecordLatency times a named operation against a URL and returns
	// a function to call when it completes.
	RecordLatency(name, url string) (done func())
}

// Atomic is the default in-process Sink: lock-free counters plus a
// Prometheus text-exposition endpoint.
type Atomic struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sums     map[string]*atomic.Int64
	states   map[string]*atomic.Int32
	latency  map[string]*latencyAgg
}

type latencyAgg struct {
	count atomic.Int64
	total atomic.Int64 // nanoseconds
}

// New creates an Atomic sink.
func New(logger *slog.Logger) *Atomic {
	return &Atomic{
		logger:  logger.With("component", "stats_sink"),
		sums:    make(map[string]*atomic.Int64),
		states:  make(map[string]*atomic.Int32),
		latency: make(map[string]*latencyAgg),
	}
}

func (a *Atomic) StatsSum(name string, n int64) {
	a.sumFor(name).Add(n)
}

func (a *Atomic) CoroutineState(name string) func() {
	counter := a.stateFor(name)
	counter.Add(1)
	return func() { counter.Add(-1) }
}

func (a *Atomic) RecordLatency(name, url string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		agg := a.latencyFor(name)
		agg.count.Add(1)
		agg.total.Add(int64(d))
		a.logger.Debug("latency recorded", "name", name, "url", url, "duration", d)
	}
}

func (a *Atomic) sumFor(name string) *atomic.Int64 {
	a.mu.RLock()
	c, ok := a.sums[name]
	a.mu.RUnlock()
	if ok {
		return c
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.sums[name]; ok {
		return c
	}
	c = &atomic.Int64{}
	a.sums[name] = c
	return c
}

func (a *Atomic) stateFor(name string) *atomic.Int32 {
	a.mu.RLock()
	c, ok := a.states[name]
	a.mu.RUnlock()
	if ok {
		return c
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.states[name]; ok {
		return c
	}
	c = &atomic.Int32{}
	a.states[name] = c
	return c
}

func (a *Atomic) latencyFor(name string) *latencyAgg {
	a.mu.RLock()
	agg, ok := a.latency[name]
	a.mu.RUnlock()
	if ok {
		return agg
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if agg, ok = a.latency[name]; ok {
		return agg
	}
	agg = &latencyAgg{}
	a.latency[name] = agg
	return agg
}

// Snapshot returns a copy of every counter/state/latency value, for
// tests and for ServeHTTP.
func (a *Atomic) Snapshot() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]int64, len(a.sums)+len(a.states))
	for k, v := range a.sums {
		out["sum."+k] = v.Load()
	}
	for k, v := range a.states {
		out["state."+k] = int64(v.Load())
	}
	for k, v := range a.latency {
		count := v.count.Load()
		out["latency."+k+".count"] = count
		if count > 0 {
			out["latency."+k+".avg_ns"] = v.total.Load() / count
		}
	}
	return out
}

// ServeHTTP exposes every counter in Prometheus text exposition format.
func (a *Atomic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	snap := a.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		metric := "politecrawl_" + sanitizeMetricName(name)
		fmt.Fprintf(w, "# TYPE %s gauge\n", metric)
		fmt.Fprintf(w, "%s %d\n", metric, snap[name])
	}
}

func sanitizeMetricName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
