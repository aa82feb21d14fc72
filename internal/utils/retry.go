package utils

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	apperrors "github.com/collabify/cachekit/internal/errors"
)

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	Timeout         time.Duration
	RetryableErrors []string
}

// RetryableFunc defines the signature for operations that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

var transientPatterns = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"eof",
	"i/o timeout",
}

// DefaultRetryConfig returns a RetryConfig with sensible default values.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		Timeout:         30 * time.Second,
		RetryableErrors: transientPatterns,
	}
}

// StoreConnectConfig is used while waiting for the cache store at startup.
func StoreConnectConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffFactor:   2.0,
		Timeout:         2 * time.Second,
		RetryableErrors: transientPatterns,
	}
}

// IsRetryableError checks if the given error is retryable. Application
// errors decide for themselves; anything else is matched against patterns.
func IsRetryableError(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.IsRetryable() {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(errMsg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// WithRetry executes the given operation with retries based on the provided config.
func WithRetry[T any](ctx context.Context, operation RetryableFunc[T], config RetryConfig) (T, error) {
	var lastErr error
	var zero T

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		// Each attempt gets its own deadline so one hung call cannot eat the budget
		attemptCtx, cancel := context.WithTimeout(ctx, config.Timeout)
		result, err := operation(attemptCtx)
		cancel() // Release the attempt's timer right away

		if err == nil {
			return result, nil
		}

		lastErr = err

		// Stop on the last attempt or on an error that will not go away by waiting
		if attempt == config.MaxAttempts || !IsRetryableError(err, config.RetryableErrors) {
			break
		}

		// Backoff delay: InitialDelay * (BackoffFactor ^ (attempt - 1)), capped at MaxDelay
		backoff := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1))
		delay := time.Duration(backoff)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}

		// Add jitter (up to 10% of the delay)
		if jitterRange := int64(delay) / 10; jitterRange > 0 {
			delay += time.Duration(rand.Int63n(jitterRange))
		}

		// Wait for the delay or for the caller to give up
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
