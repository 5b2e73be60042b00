// Package frontier implements spec §4's components C (priority queue)
// and D (ridealong table) as a single thread-safe type, the way the
// teacher's internal/engine/frontier.go bundles a heap behind a mutex —
// generalized here to the spec's (priority, rand, key) triple and
// paired with the ridealong side-table spec §3 requires.
package frontier

import (
	"container/heap"
	"sync"

	"github.com/arclane/politecrawl/internal/crawlwork"
)

// Frontier is the scheduler's work queue plus its ridealong metadata table.
type Frontier struct {
	mu        sync.Mutex
	pq        workHeap
	ridealong map[string]crawlwork.Ridealong
	closed    bool
}

// New creates an empty Frontier.
func New() *Frontier {
	f := &Frontier{
		pq:        make(workHeap, 0, 1024),
		ridealong: make(map[string]crawlwork.Ridealong),
	}
	heap.Init(&f.pq)
	return f
}

// Push inserts an item into the heap. No rate check (spec §4.1 queueWork/requeueWork).
func (f *Frontier) Push(item crawlwork.WorkItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	heap.Push(&f.pq, item)
}

// TryPop attempts a non-blocking dequeue. The bool is false if the
// frontier is empty (closed or not) — blocking is the scheduler's concern.
func (f *Frontier) TryPop() (crawlwork.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pq.Len() == 0 {
		return crawlwork.WorkItem{}, false
	}
	return heap.Pop(&f.pq).(crawlwork.WorkItem), true
}

// Len returns the number of items currently queued (not counting in-flight).
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

// Close marks the frontier closed; further Push calls are no-ops and
// TryPop continues to drain whatever remains.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Snapshot returns a copy of all queued items without removing them —
// used by the summarize path that needs a non-destructive read, as
// opposed to Drain which spec §4.5 requires for save().
func (f *Frontier) Snapshot() []crawlwork.WorkItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]crawlwork.WorkItem, len(f.pq))
	copy(out, f.pq)
	return out
}

// Drain removes and returns every queued item, in heap (dequeue) order.
// Destructive by design (spec §4.5: "the save is destructive to the
// live queue; callers must suspend workers first").
func (f *Frontier) Drain() []crawlwork.WorkItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]crawlwork.WorkItem, 0, f.pq.Len())
	for f.pq.Len() > 0 {
		out = append(out, heap.Pop(&f.pq).(crawlwork.WorkItem))
	}
	return out
}

// RestoreAll re-inserts a batch of items (checkpoint load, spec §4.5).
func (f *Frontier) RestoreAll(items []crawlwork.WorkItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		heap.Push(&f.pq, item)
	}
}

// --- Ridealong table (component D) ---

func (f *Frontier) SetRidealong(key string, r crawlwork.Ridealong) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ridealong[key] = r
}

func (f *Frontier) GetRidealong(key string) (crawlwork.Ridealong, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ridealong[key]
	return r, ok
}

func (f *Frontier) DelRidealong(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ridealong, key)
}

func (f *Frontier) RidealongLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ridealong)
}

// RidealongSnapshot returns a shallow copy of the ridealong table, for
// the summariser and for checkpoint save.
func (f *Frontier) RidealongSnapshot() map[string]crawlwork.Ridealong {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]crawlwork.Ridealong, len(f.ridealong))
	for k, v := range f.ridealong {
		out[k] = v
	}
	return out
}

// LoadRidealong replaces the ridealong table wholesale (checkpoint load).
func (f *Frontier) LoadRidealong(m map[string]crawlwork.Ridealong) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ridealong = m
}

// --- heap.Interface ---

type workHeap []crawlwork.WorkItem

func (h workHeap) Len() int            { return len(h) }
func (h workHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h workHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x any)         { *h = append(*h, x.(crawlwork.WorkItem)) }
func (h *workHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
