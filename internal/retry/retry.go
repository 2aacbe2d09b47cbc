package retry

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxRetries disables retrying: a failed page or batch is reported as is.
const DefaultMaxRetries = 0

// RetryableFunc defines a function that can be retried and returns only an error.
type RetryableFunc func() error

// Config holds configuration for retry operations.
type Config struct {
	MaxRetries    int
	BackoffConfig *BackoffConfig
	// Retryable decides whether an error is worth another attempt. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewConfig creates a new retry configuration with default values.
func NewConfig() *Config {
	return &Config{
		MaxRetries:    DefaultMaxRetries,
		BackoffConfig: NewBackoffConfig(),
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Config) WithMaxRetries(maxRetries int) *Config {
	c.MaxRetries = maxRetries
	return c
}

// WithRetryable sets the predicate that selects retryable errors.
func (c *Config) WithRetryable(fn func(error) bool) *Config {
	c.Retryable = fn
	return c
}

// WithOnRetry sets a hook invoked before every retry.
func (c *Config) WithOnRetry(fn func(attempt int, delay time.Duration, err error)) *Config {
	c.OnRetry = fn
	return c
}

// DoWithConfig executes fn, retrying retryable failures up to MaxRetries times.
// A nil config runs fn exactly once.
func DoWithConfig(ctx context.Context, config *Config, fn RetryableFunc) error {
	if config == nil {
		config = &Config{}
	}
	backoff := config.BackoffConfig
	if backoff == nil {
		backoff = NewBackoffConfig()
	}

	for attempt := 0; ; attempt++ {
		// Check context cancellation before each attempt.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context error: %w", err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= config.MaxRetries || !isRetryable(config, err) {
			return err
		}

		delay := backoff.Calculate(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context error: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func isRetryable(config *Config, err error) bool {
	if config.Retryable == nil {
		return true
	}
	return config.Retryable(err)
}
