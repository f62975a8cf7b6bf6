package util

import (
	"context"
	"time"
)

// Retry runs fn up to maxAttempts times, doubling the delay between attempts
// starting from baseDelay. It returns nil as soon as a call succeeds, the
// context error if ctx is cancelled while waiting, or the last call's error
// once the budget is spent. The orchestrator drives its stage retry budget
// through this, so only failures the stages mark retryable should reach it.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// No backoff sleep once the budget is exhausted.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return err
}
