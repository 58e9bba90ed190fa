package llm

import (
	"context"
	"log/slog"
	"time"
)

// DefaultAttempts bounds LLM calls per request.
const DefaultAttempts = 2

// RetryPolicy bounds a retried call.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // multiplied by the attempt number
}

// Outcome is the result of a bounded retry: either Value with OK, or the empty
// sentinel (OK false) with the last error.
type Outcome[T any] struct {
	Value    T
	OK       bool
	Attempts int
	Err      error
}

// Empty reports whether every attempt failed.
func (o Outcome[T]) Empty() bool { return !o.OK }

// WithRetry runs fn up to policy.Attempts times and never returns an error directly;
// failure is carried in the Outcome. Context cancellation stops further attempts.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string,
	fn func(ctx context.Context, attempt int) (T, error)) Outcome[T] {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var out Outcome[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		out.Attempts = attempt
		v, err := fn(ctx, attempt)
		if err == nil {
			out.Value, out.OK, out.Err = v, true, nil
			return out
		}
		out.Err = err
		logger.Warn(op+".attempt_failed", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if policy.Backoff > 0 {
			t := time.NewTimer(policy.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				out.Err = ctx.Err()
				return out
			case <-t.C:
			}
		}
	}
	return out
}
