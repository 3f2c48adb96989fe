package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Backoff selects how the wait between attempts grows.
type Backoff int

const (
	BackoffNone Backoff = iota
	BackoffLinear
	BackoffExponential
)

func (b Backoff) String() string {
	switch b {
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	default:
		return "none"
	}
}

// Policy holds configuration for retry with backoff.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff selects the delay curve.
	Backoff Backoff

	// Delay is the base delay between attempts.
	Delay time.Duration

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter is the fraction of the delay to randomize (0.0 to 1.0).
	Jitter float64
}

// Once returns a policy that never retries.
func Once() Policy {
	return Policy{MaxAttempts: 1, Backoff: BackoffNone}
}

// Linear returns a policy with up to retries additional attempts,
// waiting delay*attempt between them.
func Linear(retries int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: security.ClampRetries(retries) + 1,
		Backoff:     BackoffLinear,
		Delay:       delay,
	}
}

// Exponential returns a policy with up to retries additional attempts,
// doubling the wait from initial up to max.
func Exponential(retries int, initial, max time.Duration) Policy {
	return Policy{
		MaxAttempts: security.ClampRetries(retries) + 1,
		Backoff:     BackoffExponential,
		Delay:       initial,
		MaxDelay:    max,
	}
}

// Attempts returns the effective number of attempts.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DelayFor returns the wait after the given 1-indexed attempt failed.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.Delay * time.Duration(attempt)
	case BackoffExponential:
		d = p.Delay
		for i := 1; i < attempt; i++ {
			d *= 2
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				break
			}
		}
	default:
		return 0
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 {
		jitter := time.Duration(float64(d) * p.Jitter * (rand.Float64()*2 - 1))
		if d+jitter >= 0 {
			d += jitter
		}
	}
	return d
}

// Operation is a single attempt. attempt is 1-indexed.
type Operation func(ctx context.Context, attempt int) error

// RetryFunc is called after a failed attempt, before waiting for the next one.
type RetryFunc func(attempt int, err error, wait time.Duration)

// Do executes op until it succeeds or the policy is exhausted.
// It stops early on NoRetry errors and when ctx is done, and returns the
// last error. If ctx ends while waiting between attempts, the last error is
// returned inside a core.InterruptedError together with the context error.
func Do(ctx context.Context, p Policy, op Operation, onRetry RetryFunc) error {
	var lastErr error
	maxAttempts := p.Attempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) || ctx.Err() != nil || attempt >= maxAttempts {
			break
		}

		wait := p.DelayFor(attempt)
		var retryAfter *core.RetryAfterError
		if errors.As(lastErr, &retryAfter) {
			wait = retryAfter.Delay
		}

		if onRetry != nil {
			onRetry(attempt, lastErr, wait)
		}

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &core.InterruptedError{Err: lastErr, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	return lastErr
}

// IsRetryable determines if an error is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var noRetry *core.NoRetryError
	return !errors.As(err, &noRetry)
}
