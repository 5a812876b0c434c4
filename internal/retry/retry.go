// Package retry implements bounded retry with a fixed short backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config configures retry behavior for outbound calls.
type Config struct {
	MaxRetries      int           // retry attempts after the first try (0 = no retries)
	Delay           time.Duration // fixed delay between attempts
	RetryableErrors []error       // errors that should trigger a retry
}

// DefaultConfig returns the routing defaults: two retries with a short
// fixed backoff. Both values are configuration, not confirmed constants.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		Delay:      200 * time.Millisecond,
	}
}

// IsRetryable checks if an error should trigger a retry. With no configured
// retryable errors, every error is considered retryable.
func (c Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if len(c.RetryableErrors) == 0 {
		return true
	}
	for _, retryable := range c.RetryableErrors {
		if errors.Is(err, retryable) {
			return true
		}
	}
	return false
}

// WithRetry wraps a function with retry logic. The context is consulted
// before each attempt and during backoff waits.
func WithRetry[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("context cancelled: %w", err)
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !cfg.IsRetryable(lastErr) {
			return result, lastErr
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
