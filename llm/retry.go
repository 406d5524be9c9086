// ABOUTME: Retry logic with exponential backoff and jitter for the connection phase of provider calls.
// ABOUTME: Provides RetryPolicy configuration and a Retry wrapper that respects error retryability and Retry-After hints.

package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures how retry behavior works for provider calls. It only
// ever wraps the connection phase of a single attempt; moving on to another
// provider is the orchestrator's job, not the retry loop's.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (not counting the initial call).
	MaxRetries int

	// BaseDelay is the initial delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay is the upper bound on the delay between retries.
	MaxDelay time.Duration

	// BackoffMultiplier controls exponential growth of the delay between retries.
	BackoffMultiplier float64

	// Jitter randomizes the delay between zero and the computed backoff.
	Jitter bool

	// RetryIf overrides the default retryability check. When nil, errors
	// implementing IsRetryable() decide for themselves and anything else is final.
	RetryIf func(err error) bool

	// OnRetry is an optional callback invoked before each retry attempt.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns a RetryPolicy with 2 retries, 1s base delay,
// 60s max delay, 2x backoff and jitter enabled.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RateLimitRetryPolicy retries only 429s, with a longer exponential backoff
// (2s base, 3x multiplier, up to 3 retries).
func RateLimitRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            true,
		RetryIf:           IsRateLimit,
	}
}

// CalculateDelay computes the delay for a given retry attempt using exponential backoff.
// The result is always capped at MaxDelay.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}

	delay := time.Duration(delayFloat)
	if p.Jitter {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// ShouldRetry determines whether the operation should be retried based on the error
// and the current attempt number.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	if IsAbort(err) {
		return false
	}
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}

	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// Retry executes fn with the given retry policy. If the error carries a
// RetryAfter hint, that value is used as the minimum delay. Cancelling ctx
// stops the loop and returns the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !policy.ShouldRetry(lastErr, attempt) {
			return lastErr
		}

		delay := applyRetryAfter(lastErr, policy.CalculateDelay(attempt))
		if policy.OnRetry != nil {
			policy.OnRetry(lastErr, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}

// applyRetryAfter returns the greater of the calculated delay and the
// error's RetryAfter hint.
func applyRetryAfter(err error, calculatedDelay time.Duration) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter != nil {
		retryAfter := time.Duration(*pe.RetryAfter * float64(time.Second))
		if retryAfter > calculatedDelay {
			return retryAfter
		}
	}
	return calculatedDelay
}
