package engine

import (
	"context"
	"math"
	"time"

	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
)

// RetryConfig configures retry behavior for push and pull calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows per attempt.
	Multiplier float64
}

// DefaultRetryConfig returns the retry behavior used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// nextDelay computes the backoff delay before the given retry attempt
// (attempt 1 is the first retry).
func (rc RetryConfig) nextDelay(attempt int) time.Duration {
	delay := float64(rc.InitialDelay) * math.Pow(rc.Multiplier, float64(attempt-1))
	if delay > float64(rc.MaxDelay) {
		return rc.MaxDelay
	}
	return time.Duration(delay)
}

// withRetry runs fn, retrying retryable failures with exponential backoff.
// Non-retryable errors and context cancellation end the attempts immediately.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	attempts := e.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !syncErrors.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := e.retry.nextDelay(attempt)
		e.logger.Debug("retrying after failure",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
