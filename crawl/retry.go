package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/pagewalk"
)

// RetryPolicy is a bounded exponential backoff.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier scales the delay after each retry. Values below 1 keep the
	// delay constant.
	Multiplier float64
}

// DefaultRetryPolicy retries 3 times after 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}
}

// Delays returns the wait before each retry.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	delays := make([]time.Duration, p.MaxRetries)
	d := float64(p.BaseDelay)
	for i := range delays {
		delays[i] = time.Duration(d)
		if p.Multiplier > 1 {
			d *= p.Multiplier
		}
	}
	return delays
}

// RetryFunc is notified before each retry with the 1-based attempt about to
// run, the wait and the error that caused it.
type RetryFunc func(attempt int, delay time.Duration, err error)

// Do runs op until it succeeds, returns a non-retryable error, or retries
// are exhausted. It returns the last error. A nil retryable retries
// transient errors only.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool, onRetry RetryFunc) error {
	return RetryWithDelays(ctx, p.Delays(), op, retryable, onRetry)
}

// RetryWithDelays is Do over an explicit list of delays.
func RetryWithDelays(ctx context.Context, delays []time.Duration, op func(ctx context.Context) error, retryable func(error) bool, onRetry RetryFunc) error {
	if retryable == nil {
		retryable = IsTransient
	}
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt >= maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if onRetry != nil {
			onRetry(attempt+2, delays[attempt], err)
		}

		if delays[attempt] <= 0 {
			continue
		}
		timer := time.NewTimer(delays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// IsTransient reports whether err is a stale element or a navigation race,
// the failures worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, pagewalk.ErrStaleElement) || errors.Is(err, pagewalk.ErrNavigation)
}
