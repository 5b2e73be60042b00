package clock

import (
	"context"
	"testing"
	"time"
)

func TestSystemSleepRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := System{}.Sleep(ctx, 50*time.Millisecond)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestManualAdvanceWakesSleep(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	done := make(chan struct{})

	go func() {
		_ = m.Sleep(context.Background(), 5*time.Second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("sleep returned before the clock advanced")
	case <-time.After(20 * time.Millisecond):
	}

	m.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not wake after Advance")
	}
}

func TestManualSleepZeroDurationReturnsImmediately(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	if err := m.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
