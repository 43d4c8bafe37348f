// Package resilience provides the bounded retry policy used around flaky remote backends.
package resilience

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrAttemptsExhausted marks the error returned once every attempt of a policy has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// ErrNonTransient marks the error returned when a failure was classified as permanent.
var ErrNonTransient = errors.New("non-transient failure")

// Default policy parameters.
const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 1 * time.Second
)

// RetryPolicy is a fixed-interval, bounded retry strategy.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Interval is the fixed delay between two attempts.
	Interval time.Duration
	// IsTransient decides whether a failure is worth retrying. A nil detector
	// treats every error as transient.
	IsTransient func(error) bool
}

// DefaultRetryPolicy returns 3 attempts, 1 second apart, using the given detector.
func DefaultRetryPolicy(isTransient func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
		IsTransient: isTransient,
	}
}

// Validate checks the policy parameters.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.Newf("retry policy: max attempts must be greater than 0, got %d", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return errors.Newf("retry policy: interval cannot be negative, got %s", p.Interval)
	}
	return nil
}

func (p RetryPolicy) transient(err error) bool {
	if p.IsTransient == nil {
		return true
	}
	return p.IsTransient(err)
}

// Do runs fn until it succeeds, the failure is not transient, the attempts run
// out, or ctx is done. The returned error wraps the last failure and is marked
// with ErrNonTransient or ErrAttemptsExhausted; a cancelled context is returned
// as the context error wrapping the last failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.WithSecondaryError(err, lastErr)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return lastErr
			}
		}
		if !p.transient(lastErr) {
			return errors.Mark(errors.Wrapf(lastErr, "attempt %d of %d", attempt, attempts), ErrNonTransient)
		}
		if attempt == attempts {
			break
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return errors.WithSecondaryError(err, lastErr)
		}
	}

	return errors.Mark(errors.Wrapf(lastErr, "gave up after %d attempts", attempts), ErrAttemptsExhausted)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
