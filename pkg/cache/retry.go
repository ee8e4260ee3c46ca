package cache

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a failure as transient. Only errors wrapped this way
// are retried by [Backoff.Retry].
type RetryableError struct{ Err error }

// Retryable wraps err as a [RetryableError]. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err wraps a [RetryableError].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff is a capped exponential retry schedule.
type Backoff struct {
	Attempts int           // total calls, at least 1
	Initial  time.Duration // wait after the first failure
	Max      time.Duration // upper bound for any single wait; 0 means none
}

// DefaultBackoff is used for backend reference lookups.
var DefaultBackoff = Backoff{Attempts: 3, Initial: 500 * time.Millisecond, Max: 4 * time.Second}

// Wait returns how long to sleep after the n-th failed call (0-based).
func (b Backoff) Wait(n int) time.Duration {
	d := b.Initial
	for i := 0; i < n; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the last error, or ctx.Err() when ctx ends
// while waiting.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(b.Wait(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

// RetryWithBackoff is DefaultBackoff.Retry.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}
