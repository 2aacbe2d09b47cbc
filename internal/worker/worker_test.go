package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(_ context.Context, job Job[int]) Result[int] {
	return Result[int]{JobID: job.ID, Value: job.Data * 2}
}

func TestPool_SuccessfulJobs(t *testing.T) {
	pool := NewPool(double, 4)

	results := pool.Process(context.Background(), []int{1, 2, 3, 4, 5}, nil)

	require.Len(t, results, 5)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, i, r.JobID)
		assert.Equal(t, (i+1)*2, r.Value)
	}
}

func TestPool_EmptyInput(t *testing.T) {
	called := false
	pool := NewPool(func(_ context.Context, job Job[int]) Result[int] {
		called = true
		return Result[int]{JobID: job.ID}
	}, 4)

	results := pool.Process(context.Background(), nil, nil)

	assert.Empty(t, results)
	assert.False(t, called)
}

func TestPool_JobErrorDoesNotStopSiblings(t *testing.T) {
	pool := NewPool(func(_ context.Context, job Job[int]) Result[int] {
		if job.Data == 3 {
			return Result[int]{JobID: job.ID, Err: errors.New("job error")}
		}
		return Result[int]{JobID: job.ID, Value: job.Data * 2}
	}, 2)

	results := pool.Process(context.Background(), []int{1, 2, 3, 4, 5}, nil)

	require.Len(t, results, 5)
	for i, r := range results {
		if i == 2 {
			assert.EqualError(t, r.Err, "job error")
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, (i+1)*2, r.Value)
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := NewPool(func(_ context.Context, job Job[int]) Result[int] {
		if job.Data == 2 {
			panic("boom")
		}
		return Result[int]{JobID: job.ID, Value: job.Data}
	}, 2)

	results := pool.Process(context.Background(), []int{1, 2, 3}, nil)

	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "panic recovered in worker: boom")
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
}

func TestPool_BoundedConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	pool := NewPool(func(_ context.Context, job Job[int]) Result[int] {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return Result[int]{JobID: job.ID}
	}, 3)

	jobs := make([]int, 30)
	results := pool.Process(context.Background(), jobs, nil)

	require.Len(t, results, 30)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestPool_SingleWorkerRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	pool := NewPool(func(_ context.Context, job Job[int]) Result[int] {
		mu.Lock()
		order = append(order, job.Data)
		mu.Unlock()
		return Result[int]{JobID: job.ID}
	}, 1)

	pool.Process(context.Background(), []int{10, 20, 30, 40}, nil)

	assert.Equal(t, []int{10, 20, 30, 40}, order)
}

func TestPool_OnResultCalledForEveryJob(t *testing.T) {
	pool := NewPool(double, 4)

	var seen []int
	pool.Process(context.Background(), []int{1, 2, 3, 4, 5, 6}, func(r Result[int]) {
		// Called from the collecting goroutine, so no locking is needed.
		seen = append(seen, r.JobID)
	})

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, seen)
}

func TestPool_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pool := NewPool(func(ctx context.Context, job Job[int]) Result[int] {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
		}
		return Result[int]{JobID: job.ID, Value: job.Data}
	}, 2)

	results := pool.Process(ctx, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, nil)

	require.Len(t, results, 10)
	notStarted := 0
	for _, r := range results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
			notStarted++
		}
	}
	assert.GreaterOrEqual(t, notStarted, 6)
}

func TestPool_ActiveHook(t *testing.T) {
	var mu sync.Mutex
	var observed []int
	pool := NewPool(double, 2).WithActiveHook(func(active int) {
		mu.Lock()
		observed = append(observed, active)
		mu.Unlock()
	})

	pool.Process(context.Background(), []int{1, 2, 3}, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 6)
	for _, n := range observed {
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 2)
	}
}

func TestNewPool_DefaultWorkers(t *testing.T) {
	pool := NewPool(double, 0)
	assert.Equal(t, DefaultWorkers, pool.Workers())
}
