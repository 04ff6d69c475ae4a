package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var sleeps []time.Duration
	err := Do(context.Background(), Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(_ int, d time.Duration, _ error) { sleeps = append(sleeps, d) },
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(sleeps) != 2 || sleeps[0] != time.Millisecond || sleeps[1] != 2*time.Millisecond {
		t.Fatalf("expected doubling backoff, got %v", sleeps)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 2, InitialBackoff: time.Millisecond}, func(context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 2 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(error) bool { return false },
	}, func(context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, Config{MaxAttempts: 3, InitialBackoff: time.Hour}, func(context.Context) error {
		cancel()
		return errBoom
	})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errBoom) {
		t.Fatalf("expected joined cancellation error, got %v", err)
	}
}

func TestApplyJitterBounds(t *testing.T) {
	for range 100 {
		d := applyJitter(time.Second, 0.2)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if applyJitter(time.Second, 0) != time.Second {
		t.Fatal("zero factor must not jitter")
	}
}
