package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/frontier"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	f := frontier.New()
	items := []crawlwork.WorkItem{
		{Priority: 0, Rand: 0.1, Key: "a)1"},
		{Priority: 0, Rand: 0.2, Key: "a)2"},
		{Priority: 1, Rand: 0.0, Key: "b)1"},
	}
	for _, item := range items {
		f.Push(item)
		f.SetRidealong(item.Key, crawlwork.Ridealong{URL: "https://" + item.Key})
	}

	path := filepath.Join(t.TempDir(), "snap.bin")
	seeds := []string{"https://a/", "https://b/"}
	if err := Save(path, f, seeds, "digest-v1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if f.Len() != 0 {
		t.Fatalf("expected Save to drain the live queue, got %d items left", f.Len())
	}

	f2 := frontier.New()
	header, restoredSeeds, err := Load(path, f2)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if header.ConfigDigest != "digest-v1" {
		t.Fatalf("expected config digest to round-trip, got %q", header.ConfigDigest)
	}
	if len(restoredSeeds) != len(seeds) {
		t.Fatalf("expected %d seeds, got %d", len(seeds), len(restoredSeeds))
	}
	if f2.Len() != len(items) {
		t.Fatalf("expected %d restored queue items, got %d", len(items), f2.Len())
	}
	if f2.RidealongLen() != len(items) {
		t.Fatalf("expected %d restored ridealong entries, got %d", len(items), f2.RidealongLen())
	}

	first, ok := f2.TryPop()
	if !ok || first.Key != "a)1" {
		t.Fatalf("expected heap order preserved, first popped %q", first.Key)
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	f := frontier.New()
	if err := Save(path, f, nil, "d"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	state, err := readState(in)
	in.Close()
	if err != nil {
		t.Fatalf("readState failed: %v", err)
	}
	state.Header.Version = formatVersion + 1

	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := writeState(out, state); err != nil {
		out.Close()
		t.Fatalf("writeState failed: %v", err)
	}
	out.Close()

	f2 := frontier.New()
	if _, _, err := Load(path, f2); err == nil {
		t.Fatal("expected Load to reject an unsupported format version")
	}
}
