package task

import (
	"context"
	"log/slog"
	"time"
)

// ErrorClass is the retry classification of a failure.
type ErrorClass int

// Failure classes. Anything a classifier does not mark transient is treated
// as permanent and propagates on the first occurrence.
const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
)

// Classifier maps an error to its retry class.
type Classifier func(error) ErrorClass

// RetryConfig holds configuration for a RetryPolicy.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; attempt n waits
	// BaseDelay * 2^(n-1) after failing.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns a RetryConfig with reasonable defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// RetryPolicy wraps fallible operations with bounded retries and exponential
// backoff. Only transient failures are retried; permanent failures and
// context cancellation propagate immediately. Backoff waits are
// cancellation-aware.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger

	// sleep is injectable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a RetryPolicy from the given configuration,
// applying defaults for unset fields.
func NewRetryPolicy(config RetryConfig, logger *slog.Logger) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryPolicy{
		maxAttempts: config.MaxAttempts,
		baseDelay:   config.BaseDelay,
		maxDelay:    config.MaxDelay,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Execute runs op, retrying transient failures up to the attempt budget.
// classify decides whether a failure is worth retrying; a nil classifier
// treats every failure as permanent. When the budget is exhausted the
// returned error is a *RetryExhaustedError wrapping the last failure.
// Cancellation is checked before every attempt and during backoff.
func (p *RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error, classify Classifier) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if classify == nil || classify(lastErr) != ErrorClassTransient {
			return lastErr
		}

		if attempt == p.maxAttempts {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Debug("transient failure, backing off",
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"delay", delay,
			"error", lastErr)

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &RetryExhaustedError{Attempts: p.maxAttempts, Err: lastErr}
}

// backoff returns the wait after the given failed attempt:
// baseDelay * 2^(attempt-1), capped at maxDelay when one is set.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.baseDelay * time.Duration(1<<(attempt-1))
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

// sleepContext waits for the duration or until the context is done,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
