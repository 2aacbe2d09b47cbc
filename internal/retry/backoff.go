package retry

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay = 200 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
	DefaultJitterMin = 0.5
	DefaultJitterMax = 1.5

	// maxShift keeps 1<<attempt well inside int64 before the delay is capped.
	maxShift = 30
)

// BackoffConfig describes exponential backoff with jitter between attempts.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	JitterMin float64
	JitterMax float64
}

// NewBackoffConfig creates a backoff configuration with default values.
func NewBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
		JitterMin: DefaultJitterMin,
		JitterMax: DefaultJitterMax,
	}
}

// Calculate returns the delay to wait after the given zero-based attempt failed.
// The result never exceeds MaxDelay.
func (c *BackoffConfig) Calculate(attempt int) time.Duration {
	shift := min(max(attempt, 0), maxShift)
	delay := min(time.Duration(1<<shift)*c.BaseDelay, c.MaxDelay)

	jitter := c.JitterMin + rand.Float64()*(c.JitterMax-c.JitterMin)
	return min(time.Duration(float64(delay)*jitter), c.MaxDelay)
}
