package temporalx

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, returns a permanent error, or cfg.DialMaxWait
// has elapsed since the first attempt. fn reports retryable=false to stop early.
// onRetry, if set, runs before each sleep.
func Retry(ctx context.Context, cfg Config, fn func(attempt int) (retryable bool, err error), onRetry func(attempt int, err error)) error {
	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		retryable, err := fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable || cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		timer := time.NewTimer(Backoff(cfg.Backoff, cfg.BackoffMax, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
