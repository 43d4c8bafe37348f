package resilience_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akashdube/PartsUL/pkg/resilience"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection blip")

func fastPolicy(attempts int) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts: attempts,
		Interval:    time.Millisecond,
		IsTransient: func(err error) bool { return errors.Is(err, errFlaky) },
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("Succeeds after n transient failures with n+1 calls", func(t *testing.T) {
		for n := 0; n < 3; n++ {
			// Arrange
			var calls atomic.Int32
			policy := fastPolicy(3)

			// Act
			err := policy.Do(ctx, func(context.Context) error {
				if calls.Add(1) <= int32(n) {
					return errFlaky
				}
				return nil
			})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int32(n+1), calls.Load())
		}
	})

	t.Run("Exhaustion calls exactly MaxAttempts times", func(t *testing.T) {
		// Arrange
		var calls atomic.Int32
		policy := fastPolicy(3)

		// Act
		err := policy.Do(ctx, func(context.Context) error {
			calls.Add(1)
			return errFlaky
		})

		// Assert
		require.Error(t, err)
		assert.True(t, errors.Is(err, resilience.ErrAttemptsExhausted))
		assert.ErrorIs(t, err, errFlaky, "The last failure should be preserved")
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Non-transient failure is not retried", func(t *testing.T) {
		// Arrange
		var calls atomic.Int32
		permanent := errors.New("WRONGTYPE")
		policy := fastPolicy(3)

		// Act
		err := policy.Do(ctx, func(context.Context) error {
			calls.Add(1)
			return permanent
		})

		// Assert
		require.Error(t, err)
		assert.True(t, errors.Is(err, resilience.ErrNonTransient))
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Cancellation during backoff aborts further attempts", func(t *testing.T) {
		// Arrange
		var calls atomic.Int32
		policy := resilience.RetryPolicy{MaxAttempts: 5, Interval: time.Minute}
		cancelCtx, cancel := context.WithCancel(ctx)
		time.AfterFunc(20*time.Millisecond, cancel)

		// Act
		start := time.Now()
		err := policy.Do(cancelCtx, func(context.Context) error {
			calls.Add(1)
			return errFlaky
		})

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load())
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("Already cancelled context never calls fn", func(t *testing.T) {
		// Arrange
		var calls atomic.Int32
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		// Act
		err := fastPolicy(3).Do(cancelCtx, func(context.Context) error {
			calls.Add(1)
			return nil
		})

		// Assert
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls.Load())
	})
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, resilience.DefaultRetryPolicy(nil).Validate())
	assert.Error(t, resilience.RetryPolicy{MaxAttempts: 0, Interval: time.Second}.Validate())
	assert.Error(t, resilience.RetryPolicy{MaxAttempts: 1, Interval: -time.Second}.Validate())

	p := resilience.DefaultRetryPolicy(nil)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Interval)
}
