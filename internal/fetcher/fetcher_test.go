package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/statssink"
)

func testSink() *statssink.Atomic {
	return statssink.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestFetchLengthTruncation(t *testing.T) {
	const chunk = 8192
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, chunk)
		for i := range buf {
			buf[i] = 'x'
		}
		for i := 0; i < 128; i++ { // 1 MiB total
			w.Write(buf)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	defer srv.Close()

	sess := NewSession(10*time.Second, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, srv.URL),
		Headers:     http.Header{"User-Agent": []string{"test"}},
		MaxPageSize: 65536,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected propagated error: %v", err)
	}
	if resp.TruncationReason != crawlwork.TruncationLength {
		t.Fatalf("expected length truncation, got %v (lastErr=%v)", resp.TruncationReason, resp.LastError)
	}
	if int64(len(resp.Body)) != 65536 {
		t.Fatalf("expected body capped at 65536 bytes, got %d", len(resp.Body))
	}
	if !resp.OK() {
		t.Fatal("length truncation must still report OK (spec guarantee 2)")
	}
}

func TestFetchUnboundedReadsFullBody(t *testing.T) {
	const want = "hello, polite crawler"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, want)
	}))
	defer srv.Close()

	sess := NewSession(10*time.Second, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, srv.URL),
		Headers:     http.Header{"User-Agent": []string{"test"}},
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got lastError=%v", resp.LastError)
	}
	if string(resp.Body) != want {
		t.Fatalf("expected full body %q, got %q", want, resp.Body)
	}
	if resp.TruncationReason != crawlwork.TruncationNone {
		t.Fatalf("expected no truncation, got %v", resp.TruncationReason)
	}
}

func TestFetchTimeTruncationPreservesPartialBody(t *testing.T) {
	blockUntilCancel := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "partial-prefix")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-blockUntilCancel
	}))
	defer srv.Close()
	defer close(blockUntilCancel)

	sess := NewSession(50*time.Millisecond, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, srv.URL),
		Headers:     http.Header{"User-Agent": []string{"test"}},
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("a session timeout mid-body must not propagate as an error: %v", err)
	}
	if resp.OK() {
		t.Fatal("expected OK() false on a time-truncated response")
	}
	if len(resp.Body) == 0 {
		t.Fatal("expected the partial prefix to survive a mid-body timeout (spec guarantee 3)")
	}
	if resp.LastError == nil || resp.LastError.Kind != crawlwork.KindTimeout {
		t.Fatalf("expected a classified TimeoutError, got %v", resp.LastError)
	}
}

func TestFetchDNSFailureClassifiesAsClientError(t *testing.T) {
	sess := NewSession(2*time.Second, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, "http://this-host-does-not-resolve.invalid/"),
		Headers:     http.Header{"User-Agent": []string{"test"}},
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected propagated error: %v", err)
	}
	if resp.OK() {
		t.Fatal("expected failure for an unresolvable host")
	}
	if resp.LastError.Kind != crawlwork.KindClient {
		t.Fatalf("expected ClientError for DNS failure, got %v", resp.LastError.Kind)
	}
}

func TestFetchMissingHostIsValueError(t *testing.T) {
	sess := NewSession(time.Second, false)
	stats := testSink()

	u := &url.URL{Scheme: "http", Path: "/no-host"}
	resp, err := Fetch(context.Background(), sess, Request{
		Target:      u,
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected propagated error: %v", err)
	}
	if resp.LastError == nil || resp.LastError.Kind != crawlwork.KindValue {
		t.Fatalf("expected ValueError for a missing host, got %v", resp.LastError)
	}
}

func TestFetchCancellationBeforeResponsePropagates(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	sess := NewSession(10*time.Second, false)
	stats := testSink()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Fetch(ctx, sess, Request{
		Target:      mustURL(t, srv.URL),
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err == nil {
		t.Fatal("expected cancellation to propagate unchanged (spec guarantee 6)")
	}
}

func TestFetchPeerIPCapturesLoopbackAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	sess := NewSession(10*time.Second, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, srv.URL),
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PeerIP == "" {
		t.Fatal("expected PeerIP to capture the dialed loopback address")
	}
	if resp.PeerIP != "127.0.0.1" && resp.PeerIP != "::1" {
		t.Fatalf("expected a loopback address, got %q", resp.PeerIP)
	}
}

func TestFetchPeerIPEmptyThroughProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := http.Get(srv.URL + r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		io.Copy(w, resp.Body)
	}))
	defer proxy.Close()

	sess := NewSession(10*time.Second, false)
	stats := testSink()

	resp, err := Fetch(context.Background(), sess, Request{
		Target:      mustURL(t, srv.URL),
		Proxy:       mustURL(t, proxy.URL),
		MaxPageSize: -1,
		StatsPrefix: "test",
	}, stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PeerIP != "" {
		t.Fatalf("expected PeerIP to be suppressed when fetching through a proxy, got %q", resp.PeerIP)
	}
}

func TestNoiseFilterDropsAllowListedWarnings(t *testing.T) {
	var sb strings.Builder
	base := slog.NewTextHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(InstallNoiseFilter(base))

	logger.Warn("SSL handshake failed: peer reset connection")
	logger.Warn("a real warning that should survive")

	out := sb.String()
	if strings.Contains(out, "SSL handshake failed") {
		t.Fatal("expected the allow-listed SSL warning to be dropped")
	}
	if !strings.Contains(out, "a real warning that should survive") {
		t.Fatal("expected the non-matching warning to pass through")
	}
}
