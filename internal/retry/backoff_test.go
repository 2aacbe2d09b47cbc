package retry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffConfig_Calculate(t *testing.T) {
	config := NewBackoffConfig()

	tests := []struct {
		name    string
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{"attempt 0", 0, 100 * time.Millisecond, 300 * time.Millisecond},
		{"attempt 1", 1, 200 * time.Millisecond, 600 * time.Millisecond},
		{"attempt 2", 2, 400 * time.Millisecond, 1200 * time.Millisecond},
		{"attempt 10", 10, 5 * time.Second, 10 * time.Second}, // Capped at MaxDelay.
		{"huge attempt", 1000, 5 * time.Second, 10 * time.Second},
		{"negative attempt", -3, 100 * time.Millisecond, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := config.Calculate(tt.attempt)
			assert.GreaterOrEqual(t, delay, tt.min)
			assert.LessOrEqual(t, delay, tt.max)
		})
	}
}

func TestBackoffConfig_ConcurrentCalculate(t *testing.T) {
	config := NewBackoffConfig()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	uniqueDelays := make(map[time.Duration]bool)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				delay := config.Calculate(j % 5)
				assert.Positive(t, delay)
				assert.LessOrEqual(t, delay, config.MaxDelay)

				mu.Lock()
				uniqueDelays[delay] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Jitter spreads the delays.
	assert.Greater(t, len(uniqueDelays), 10)
}
