package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/quotewise/aigate/llm"
)

const (
	// DefaultMaxAttempts is the per-provider retry budget.
	DefaultMaxAttempts = 2
	// DefaultBaseDelay is the backoff delay before the first retry.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 8 * time.Second
)

// RetryPolicy computes bounded exponential backoff and drives the
// per-provider attempt loop. Which error kinds are retryable is decided by
// the llm error taxonomy, not by the policy.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns the documented defaults with jitter enabled.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      true,
	}
}

// Delay returns min(MaxDelay, BaseDelay*2^attempt). With jitter enabled the
// result is scaled by a random factor in [0.5, 1.5) to desynchronize
// concurrent callers backing off at the same time.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 || p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	return delay
}

// Sleep waits for the given delay, respecting context cancellation.
func (p RetryPolicy) Sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned by Do when every attempt failed with a
// retryable error. It carries the attempt count and the last error seen.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do invokes fn up to MaxAttempts times. A retryable error sleeps the
// computed backoff and retries; a non-retryable error propagates
// immediately without consuming further attempts; an expired context aborts
// the loop. When the budget runs out, Do returns an *ExhaustedError.
//
// A rate-limited attempt serves its cooldown even when it was the last one,
// and a rate-limit retry-after hint longer than the computed backoff wins.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !llm.IsRetryable(err) {
			return err
		}
		lastErr = err

		rateLimited := llm.KindOf(err) == llm.KindRateLimited
		if attempt < p.MaxAttempts-1 || rateLimited {
			delay := p.Delay(attempt)
			if hint := llm.RetryAfterHint(err); hint != nil && *hint > delay {
				delay = *hint
			}
			if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Last: lastErr}
}
