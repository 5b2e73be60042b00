package crawlwork

import "time"

// WorkItem is the ordered triple the frontier heap sorts on: priority,
// then rand, then key. Lower priority is dispensed sooner; rand breaks
// ties within a priority band and drifts upward on requeue-after-failure
// (spec §3, §4.1).
type WorkItem struct {
	Priority int
	Rand     float64
	Key      string
}

// Less implements the heap ordering: (priority, rand, key) ascending.
func (w WorkItem) Less(other WorkItem) bool {
	if w.Priority != other.Priority {
		return w.Priority < other.Priority
	}
	if w.Rand != other.Rand {
		return w.Rand < other.Rand
	}
	return w.Key < other.Key
}

// Ridealong carries the metadata too large or too mutable to live in the
// heap itself (spec §3 Invariant R1/R2). The queue only ever moves the
// WorkItem triple; workers look the rest up by Key.
type Ridealong struct {
	URL       string
	Priority  int
	Tries     int
	ParentURL string
	Depth     int
	CreatedAt time.Time
}

// UpdatePriority implements spec §4.1: while rand exceeds 1.2, bump the
// priority band and bring rand back down by a full unit. Chronically
// failing items this way migrate to later bands instead of clustering
// at the tail of the current one. Idempotent once rand <= 1.2.
func UpdatePriority(priority int, rand float64) (int, float64) {
	for rand > 1.2 {
		priority++
		rand -= 1.0
	}
	return priority, rand
}
