package sqlstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the default number of attempts for transient failures
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 50 * time.Millisecond
)

// RetryConfig configures retries of transient failures
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// retry runs fn until it succeeds, fails with a non-transient error or runs
// out of attempts. The backoff doubles after every attempt.
func retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn func() error) error {
	attempts := max(cfg.MaxRetries, 1)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		backoff := cfg.BaseBackoff * time.Duration(1<<uint(attempt))
		logger.Warn("transient store error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
