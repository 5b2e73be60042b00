package clock

import (
	"context"
	"sync"
	"time"
)

// Manual is a fake Clock for deterministic scheduler tests. Sleep
// blocks until either ctx is cancelled or the clock has been Advance'd
// to or past the wake time, whichever happens first. Kept as a small
// hand-rolled type rather than a third-party fake-clock dependency
// (see DESIGN.md — no such library is exercised elsewhere in the pack).
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	subs []manualWaiter
}

type manualWaiter struct {
	wake time.Time
	ch   chan struct{}
}

// NewManual creates a Manual clock starting at t0.
func NewManual(t0 time.Time) *Manual {
	return &Manual{now: t0}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d, waking any Sleep calls whose
// deadline has passed.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var remaining []manualWaiter
	for _, w := range m.subs {
		if !w.wake.After(now) {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	m.subs = remaining
	m.mu.Unlock()
}

func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	if d <= 0 {
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	ch := make(chan struct{})
	m.subs = append(m.subs, manualWaiter{wake: m.now.Add(d), ch: ch})
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
