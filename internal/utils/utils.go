package utils

import (
	"context"
	"errors"
	"time"
)

var sleep = time.Sleep

func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RetryPolicy controls Retry. Attempts below one mean a single attempt.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Retry calls fn until it succeeds, the attempts are exhausted or retryable
// reports the error as permanent. The wait between attempts doubles up to
// MaxBackoff.
func Retry[T any](ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := max(policy.Attempts, 1)
	backoff := policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == attempts || (retryable != nil && !retryable(err)) {
			break
		}

		if err := WaitFor(ctx, backoff); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return zero, lastErr
}
