// Package dedup tracks which URLs the demonstration CLI has already
// queued, so the same link reached by two different anchors on two
// different pages is not re-submitted to the scheduler. It is not a
// spec component — spec.md §1 names URL-seen tracking as an external
// collaborator concern — but the demo CLI's crawl loop needs one to be
// runnable at all, so this is carried over from the teacher's
// internal/engine/dedup.go Deduplicator, generalized only in name
// (Tracker instead of Deduplicator) to fit this package's narrower
// scope.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Tracker records which canonicalized URLs have already been queued.
type Tracker struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewTracker creates a Tracker sized for roughly estimatedCapacity URLs.
func NewTracker(estimatedCapacity int) *Tracker {
	return &Tracker{seen: make(map[string]struct{}, estimatedCapacity)}
}

// IsSeen reports whether rawURL, after canonicalization, has already
// been marked.
func (t *Tracker) IsSeen(rawURL string) bool {
	hash := hashURL(Canonicalize(rawURL))
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seen[hash]
	return ok
}

// MarkIfNew marks rawURL seen and reports whether it was new (false if
// it was already present), letting a caller mark-and-check atomically
// instead of racing between IsSeen and a separate Mark.
func (t *Tracker) MarkIfNew(rawURL string) bool {
	hash := hashURL(Canonicalize(rawURL))
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[hash]; ok {
		return false
	}
	t.seen[hash] = struct{}{}
	return true
}

// Count returns the number of unique URLs recorded.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}

// Canonicalize normalizes a URL for deduplication: lowercases scheme
// and host, strips the fragment and default port, sorts query
// parameters, and drops a trailing slash from any non-root path.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

func hashURL(canonical string) string {
	h := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(h[:16])
}
