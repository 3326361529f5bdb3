package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// transientClassifier marks every failure retriable.
func transientClassifier(error) ErrorClass { return ErrorClassTransient }

// recordedSleeps swaps the policy's sleep for one that records requested
// delays without waiting.
func recordedSleeps(p *RetryPolicy) *[]time.Duration {
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return &delays
}

func TestRetryPolicyTransientThenSuccess(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond}, newTestLogger(t))
	delays := recordedSleeps(policy)

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, transientClassifier)

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "two failures and one success should take exactly three attempts")
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *delays)
}

func TestRetryPolicyBackoffSequence(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    300 * time.Millisecond,
	}, newTestLogger(t))
	delays := recordedSleeps(policy)

	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		return errBoom
	}, transientClassifier)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.ErrorIs(t, err, errBoom)

	// Doubling from the base, capped at the configured maximum.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, *delays)
}

func TestRetryPolicyPermanentFailsFast(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond}, newTestLogger(t))
	delays := recordedSleeps(policy)

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, func(error) ErrorClass { return ErrorClassPermanent })

	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorAs(t, err, new(*RetryExhaustedError))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestRetryPolicyNilClassifierNeverRetries(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond}, newTestLogger(t))

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, nil)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyCancelledBeforeAttempt(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := policy.Execute(ctx, func(ctx context.Context) error {
		calls++
		return nil
	}, transientClassifier)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls, "a cancelled context must not reach the operation")
}

func TestRetryPolicyCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := policy.Execute(ctx, func(ctx context.Context) error {
		calls++
		return errBoom
	}, transientClassifier)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must not start another attempt")
}

func TestRetryPolicyDefaultsApplied(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(RetryConfig{}, nil)
	assert.Equal(t, 3, policy.maxAttempts)
	assert.Equal(t, time.Second, policy.baseDelay)
}

func TestIsRetryExhausted(t *testing.T) {
	t.Parallel()

	exhausted := &RetryExhaustedError{Attempts: 3, Err: errBoom}
	assert.True(t, IsRetryExhausted(exhausted))
	assert.True(t, IsRetryExhausted(fmt.Errorf("fetch provinces: %w", exhausted)))
	assert.False(t, IsRetryExhausted(errBoom))
	assert.False(t, IsRetryExhausted(nil))
}
