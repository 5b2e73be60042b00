package frontier

import (
	"testing"

	"github.com/arclane/politecrawl/internal/crawlwork"
)

func TestPushTryPopOrdersByPriority(t *testing.T) {
	f := New()

	f.Push(crawlwork.WorkItem{Priority: 5, Key: "com,example)/page1"})
	f.Push(crawlwork.WorkItem{Priority: 1, Key: "com,example)/page2"})

	if f.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", f.Len())
	}

	got, ok := f.TryPop()
	if !ok {
		t.Fatal("expected an item")
	}
	if got.Priority != 1 {
		t.Fatalf("expected lower priority first, got %d", got.Priority)
	}

	got2, ok := f.TryPop()
	if !ok || got2.Priority != 5 {
		t.Fatalf("expected second item priority 5, got %+v ok=%v", got2, ok)
	}

	if f.Len() != 0 {
		t.Fatalf("expected empty frontier, got %d", f.Len())
	}
}

func TestTryPopEmpty(t *testing.T) {
	f := New()
	if _, ok := f.TryPop(); ok {
		t.Fatal("expected false from empty frontier")
	}
}

func TestClose(t *testing.T) {
	f := New()
	f.Close()
	if !f.IsClosed() {
		t.Fatal("expected frontier to report closed")
	}
	// Push after close is silently dropped.
	f.Push(crawlwork.WorkItem{Key: "com,example)/"})
	if f.Len() != 0 {
		t.Fatal("expected push-after-close to be a no-op")
	}
}

func TestTieBreakOnRandThenKey(t *testing.T) {
	f := New()
	f.Push(crawlwork.WorkItem{Priority: 1, Rand: 0.9, Key: "b"})
	f.Push(crawlwork.WorkItem{Priority: 1, Rand: 0.1, Key: "a"})

	got, _ := f.TryPop()
	if got.Key != "a" {
		t.Fatalf("expected lower rand to win tie, got key %q", got.Key)
	}
}

func TestDrainRemovesEverything(t *testing.T) {
	f := New()
	for i := 0; i < 10; i++ {
		f.Push(crawlwork.WorkItem{Priority: i, Key: "k"})
	}
	drained := f.Drain()
	if len(drained) != 10 {
		t.Fatalf("expected 10 drained items, got %d", len(drained))
	}
	if f.Len() != 0 {
		t.Fatal("expected frontier empty after drain")
	}
}

func TestSnapshotIsNonDestructive(t *testing.T) {
	f := New()
	f.Push(crawlwork.WorkItem{Priority: 0, Key: "k"})
	snap := f.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 snapshot item, got %d", len(snap))
	}
	if f.Len() != 1 {
		t.Fatal("snapshot must not remove items")
	}
}

func TestRestoreAll(t *testing.T) {
	f := New()
	f.RestoreAll([]crawlwork.WorkItem{
		{Priority: 2, Key: "a"},
		{Priority: 1, Key: "b"},
	})
	if f.Len() != 2 {
		t.Fatalf("expected 2 items restored, got %d", f.Len())
	}
	got, _ := f.TryPop()
	if got.Key != "b" {
		t.Fatalf("expected lower priority first after restore, got %q", got.Key)
	}
}

func TestRidealongTable(t *testing.T) {
	f := New()
	r := crawlwork.Ridealong{URL: "https://example.com/"}
	f.SetRidealong("com,example)/", r)

	got, ok := f.GetRidealong("com,example)/")
	if !ok || got.URL != r.URL {
		t.Fatalf("expected ridealong round-trip, got %+v ok=%v", got, ok)
	}

	if f.RidealongLen() != 1 {
		t.Fatalf("expected 1 ridealong entry, got %d", f.RidealongLen())
	}

	f.DelRidealong("com,example)/")
	if _, ok := f.GetRidealong("com,example)/"); ok {
		t.Fatal("expected ridealong entry to be gone after delete")
	}
}
