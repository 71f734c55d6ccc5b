package llm

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int     // total retry attempts (not counting initial)
	BaseDelay         float64 // initial delay in seconds
	MaxDelay          float64 // maximum delay between retries
	BackoffMultiplier float64 // exponential backoff factor
	Jitter            bool    // add random jitter to prevent thundering herd
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay calculates the backoff delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		// +/- 50% jitter
		delay = delay * (0.5 + rand.Float64()) // rand in [0,1) -> [0.5, 1.5)
	}
	return time.Duration(delay * float64(time.Second))
}

// delayFor picks the wait before the next attempt. A rate-limit response
// naming a Retry-After within MaxDelay overrides the backoff schedule; one
// beyond MaxDelay reports false, meaning the error should surface instead
// of being waited out.
func (p RetryPolicy) delayFor(err error, attempt int) (time.Duration, bool) {
	if rl, ok := err.(*RateLimitError); ok && rl.RetryAfter != nil {
		wait := time.Duration(*rl.RetryAfter * float64(time.Second))
		if wait > time.Duration(p.MaxDelay*float64(time.Second)) {
			return 0, false
		}
		return wait, true
	}
	return p.Delay(attempt), true
}

// Retry executes fn until it succeeds, the error is not retryable, or the
// policy's attempts are exhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay, retryable := policy.delayFor(err, attempt)
		if !retryable {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &RequestTimeoutError{APIError: APIError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-time.After(delay):
		}
	}
}
