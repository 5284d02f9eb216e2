package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

// DefaultRetryPolicy retries optimistic-concurrency conflicts up to three
// times, sleeping attempt*100ms between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(100 * time.Millisecond),
		Retryable:   IsVersionConflict,
	}
}

// LinearBackoff waits attempt*step after the given attempt.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// IsVersionConflict reports whether err is a stale-version write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict)
}

// ErrRetriesExhausted wraps the last error once the attempt budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry runs op until it succeeds, fails with a non-retryable error, the
// attempt budget is spent, or ctx is cancelled.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(policy.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if policy.Retryable == nil || !policy.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		var wait time.Duration
		if policy.Backoff != nil {
			wait = policy.Backoff(attempt)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}
