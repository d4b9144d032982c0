package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig is an exponential backoff policy. MaxRetries counts attempts
// after the first.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter scales each wait by a random factor in [0.5, 1).
	Jitter bool
}

// DefaultRetryConfig suits local IPC and file reads: short delays, few attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// backoff returns the wait before retry number attempt (0-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			delay = float64(c.MaxDelay)
			break
		}
	}
	if c.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}

// Retry runs fn until it succeeds, returns a permanent error, the context
// ends, or the attempts run out. Callers own retry policy; the engine
// never retries on its own.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that also return a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if permanent(err) {
			return zero, err
		}
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	switch GetCategory(err) {
	case CategoryValidation, CategoryNotFound, CategoryConfig:
		return true
	}
	return false
}
