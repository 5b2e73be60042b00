package demosink

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSONLSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLSink(&buf, testLogger())

	links := []DiscoveredLink{
		{SourceURL: "https://a/", LinkURL: "https://a/1", Depth: 1},
		{SourceURL: "https://a/", LinkURL: "https://a/2", Depth: 1},
	}
	if err := sink.Store(links); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded DiscoveredLink
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("expected valid JSON per line, got error: %v", err)
	}
	if decoded.LinkURL != "https://a/1" {
		t.Fatalf("expected first link to round-trip, got %q", decoded.LinkURL)
	}
}

func TestMultiSinkFansOutToEveryBackend(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	s1 := NewJSONLSink(&buf1, testLogger())
	s2 := NewJSONLSink(&buf2, testLogger())
	multi := NewMultiSink(testLogger(), s1, s2)

	links := []DiscoveredLink{{SourceURL: "https://a/", LinkURL: "https://a/1"}}
	if err := multi.Store(links); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Fatal("expected both backends to receive the write")
	}
}
