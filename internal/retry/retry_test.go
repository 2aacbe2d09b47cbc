package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func fastConfig() *Config {
	config := NewConfig()
	config.BackoffConfig.BaseDelay = time.Millisecond
	config.BackoffConfig.MaxDelay = 5 * time.Millisecond
	return config
}

func TestDoWithConfig_Success(t *testing.T) {
	attempts := 0
	err := DoWithConfig(context.Background(), NewConfig(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithConfig_DefaultDoesNotRetry(t *testing.T) {
	attempts := 0
	err := DoWithConfig(context.Background(), NewConfig(), func() error {
		attempts++
		return errTemporary
	})

	require.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 1, attempts)
}

func TestDoWithConfig_NilConfig(t *testing.T) {
	attempts := 0
	err := DoWithConfig(context.Background(), nil, func() error {
		attempts++
		return errTemporary
	})

	require.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 1, attempts)
}

func TestDoWithConfig_RetryAndSuccess(t *testing.T) {
	config := fastConfig().WithMaxRetries(2)
	attempts := 0

	err := DoWithConfig(context.Background(), config, func() error {
		attempts++
		if attempts < 3 {
			return errTemporary
		}
		return nil // Success on third attempt.
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoWithConfig_MaxRetriesExceeded(t *testing.T) {
	config := fastConfig().WithMaxRetries(2)
	attempts := 0

	err := DoWithConfig(context.Background(), config, func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // Initial attempt + 2 retries.
	assert.Contains(t, err.Error(), "persistent error")
}

func TestDoWithConfig_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("bad request")
	config := fastConfig().WithMaxRetries(5).WithRetryable(func(err error) bool {
		return !errors.Is(err, permanent)
	})
	attempts := 0

	err := DoWithConfig(context.Background(), config, func() error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestDoWithConfig_OnRetry(t *testing.T) {
	var seen []int
	config := fastConfig().WithMaxRetries(2).WithOnRetry(func(attempt int, delay time.Duration, err error) {
		seen = append(seen, attempt)
		assert.ErrorIs(t, err, errTemporary)
		assert.Positive(t, delay)
	})

	err := DoWithConfig(context.Background(), config, func() error {
		return errTemporary
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoWithConfig_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	config := NewConfig().WithMaxRetries(10)
	config.BackoffConfig.BaseDelay = 100 * time.Millisecond

	attempts := 0
	err := DoWithConfig(ctx, config, func() error {
		attempts++
		return errTemporary
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 2)
}

func TestDoWithConfig_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := DoWithConfig(ctx, NewConfig(), func() error {
		attempts++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
