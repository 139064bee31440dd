package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retry runs fn up to attempts times, sleeping baseDelay, 2*baseDelay,
// 4*baseDelay, … between attempts. It returns nil on the first success and
// the last error once the budget is exhausted. Context cancellation aborts
// the wait and is returned immediately.
//
// attempts below 1 is treated as 1; a non-positive baseDelay disables the
// sleep between attempts.
func Retry(ctx context.Context, name string, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		slog.Warn("retrying after failure",
			"name", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"err", lastErr)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", name, attempts, lastErr)
}
