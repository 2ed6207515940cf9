package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	originalSleep := sleep
	var waits []time.Duration
	sleep = func(d time.Duration) { waits = append(waits, d) }
	defer func() { sleep = originalSleep }()

	temporary := errors.New("temporary")
	permanent := errors.New("permanent")

	t.Run("succeeds after temporary errors", func(t *testing.T) {
		waits = nil
		calls := 0
		got, err := Retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Second, MaxBackoff: 1500 * time.Millisecond},
			func(err error) bool { return errors.Is(err, temporary) },
			func(context.Context) (string, error) {
				calls++
				if calls < 3 {
					return "", temporary
				}
				return "ok", nil
			})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "ok" || calls != 3 {
			t.Fatalf("unexpected result %q after %d calls", got, calls)
		}
		if len(waits) != 2 || waits[0] != time.Second || waits[1] != 1500*time.Millisecond {
			t.Fatalf("unexpected waits: %v", waits)
		}
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), RetryPolicy{Attempts: 5},
			func(err error) bool { return errors.Is(err, temporary) },
			func(context.Context) (int, error) {
				calls++
				return 0, permanent
			})
		if !errors.Is(err, permanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
		if calls != 1 {
			t.Fatalf("expected single call, got %d", calls)
		}
	})

	t.Run("returns last error when attempts exhausted", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), RetryPolicy{Attempts: 2}, nil,
			func(context.Context) (int, error) {
				calls++
				return 0, temporary
			})
		if !errors.Is(err, temporary) || calls != 2 {
			t.Fatalf("expected temporary error after 2 calls, got %v after %d", err, calls)
		}
	})
}

func TestWaitForCancelled(t *testing.T) {
	originalSleep := sleep
	release := make(chan struct{})
	sleep = func(time.Duration) { <-release }
	defer func() {
		close(release)
		sleep = originalSleep
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
