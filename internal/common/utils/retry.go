// Package utils holds small helpers shared by the service's startup code.
package utils

import (
	"context"
	"math/rand"
	"time"

	"ingest-router/internal/common/errors"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay at random.
	JitterFactor float64

	// RetryableErrors selects the errors worth another attempt. Nil retries
	// everything.
	RetryableErrors func(error) bool

	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig retries three times with exponential backoff starting
// at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// ConnectionErrorsOnly retries connection failures and nothing else.
func ConnectionErrorsOnly(err error) bool {
	return errors.IsType(err, errors.ErrTypeConnection)
}

// RetryWithBackoff runs fn until it succeeds, returns a non-retryable
// error, runs out of attempts or ctx is cancelled. The last error from fn
// is returned unchanged so callers can inspect its type.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	delay := config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if config.RetryableErrors != nil && !config.RetryableErrors(lastErr) {
			return lastErr
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.JitterFactor > 0 && wait > 0 {
			wait += time.Duration(rand.Int63n(int64(float64(wait)*config.JitterFactor) + 1))
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, wait, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.InternalError("retry cancelled", ctx.Err())
		case <-timer.C:
		}

		if config.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return lastErr
}
