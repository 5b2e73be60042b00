// Package ttlmap implements NextFetchMap (spec §3, §4.4): a bounded,
// per-entry-TTL map from host to the earliest instant a fetch for that
// host is permitted. It is built on patrickmn/go-cache, which already
// supplies lazy TTL expiry on read and janitor-based bulk cleanup; this
// package adds the capacity bound and eviction policy go-cache itself
// has no opinion on.
package ttlmap

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	// DefaultCapacity is the bound from spec §4.4.
	DefaultCapacity = 10_000
	// DefaultTTL is the per-entry expiry from spec §3/§4.4: chosen so
	// hosts idle longer than 1/QPS (for QPS >= 0.1) are forgotten
	// without affecting spacing semantics.
	DefaultTTL = 10 * time.Second
)

// NextFetchMap is the bounded host -> next-eligible-instant mapping.
// Safe for concurrent use; callers needing an atomic
// "read-then-conditionally-write" must still take the scheduler's own
// lock around the pair of calls (spec §5 — the critical section spans
// the scheduler, not this map).
type NextFetchMap struct {
	mu       sync.Mutex
	c        *cache.Cache
	capacity int
	ttl      time.Duration
}

// New creates a NextFetchMap with the given capacity and TTL.
func New(capacity int, ttl time.Duration) *NextFetchMap {
	return &NextFetchMap{
		c:        cache.New(ttl, ttl/2),
		capacity: capacity,
		ttl:      ttl,
	}
}

// NewDefault creates a NextFetchMap using the spec's stated capacity and TTL.
func NewDefault() *NextFetchMap {
	return New(DefaultCapacity, DefaultTTL)
}

// Get returns the next-eligible instant for host, and whether an
// unexpired entry exists (spec Invariant N1: absent => immediately permitted).
func (m *NextFetchMap) Get(host string) (time.Time, bool) {
	v, ok := m.c.Get(host)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// Set records the next-eligible instant for host, evicting under
// capacity pressure per spec §4.4 if host is a new key.
func (m *NextFetchMap) Set(host string, next time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.c.Get(host); !exists {
		m.evictIfFull()
	}
	m.c.Set(host, next, m.ttl)
}

// Len reports the current (possibly includes not-yet-swept-expired) entry count.
func (m *NextFetchMap) Len() int {
	return m.c.ItemCount()
}

// evictIfFull applies spec §4.4's eviction policy: prefer the
// least-recently-updated already-expired entry; absent any expired
// entry, evict whichever entry has the earliest recorded nextFetch
// instant (it has either already released its reservation or is the
// least constraining one to lose). Caller holds m.mu.
func (m *NextFetchMap) evictIfFull() {
	if m.c.ItemCount() < m.capacity {
		return
	}

	items := m.c.Items()
	now := time.Now()

	var (
		expiredKey  string
		expiredAt   int64
		haveExpired bool

		earliestKey  string
		earliestNext time.Time
		haveAny      bool
	)

	for k, item := range items {
		if item.Expiration > 0 && now.UnixNano() > item.Expiration {
			if !haveExpired || item.Expiration < expiredAt {
				expiredKey, expiredAt, haveExpired = k, item.Expiration, true
			}
			continue
		}
		next := item.Object.(time.Time)
		if !haveAny || next.Before(earliestNext) {
			earliestKey, earliestNext, haveAny = k, next, true
		}
	}

	if haveExpired {
		m.c.Delete(expiredKey)
		return
	}
	if haveAny {
		m.c.Delete(earliestKey)
	}
}
