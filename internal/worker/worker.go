package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the number of workers used when none is configured.
var DefaultWorkers = runtime.NumCPU()

// Job represents a unit of work to be processed, with an ID and payload.
type Job[T any] struct {
	ID   int
	Data T
}

// Result holds the outcome of a processed job.
type Result[V any] struct {
	JobID int
	Value V
	Err   error
}

// JobFunc defines the function signature for work to be performed on a job.
type JobFunc[T, V any] func(context.Context, Job[T]) Result[V]

// Pool runs jobs on a bounded number of workers. A failing job never stops its
// siblings: every job gets its own result.
type Pool[T, V any] struct {
	jobFunc JobFunc[T, V]
	workers int

	active   atomic.Int32
	onActive func(active int)
}

// NewPool creates a pool with the given number of workers. Non-positive values
// fall back to DefaultWorkers.
func NewPool[T, V any](jobFunc JobFunc[T, V], workers int) *Pool[T, V] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool[T, V]{
		jobFunc: jobFunc,
		workers: workers,
	}
}

// WithActiveHook registers fn to observe the number of busy workers.
func (p *Pool[T, V]) WithActiveHook(fn func(active int)) *Pool[T, V] {
	p.onActive = fn
	return p
}

// Workers returns the configured worker count.
func (p *Pool[T, V]) Workers() int {
	return p.workers
}

// Process runs one job per element of jobsData and returns the results indexed
// like the input. onResult, when set, is called from the calling goroutine as each
// job completes. Jobs that were never started because ctx ended carry ctx's error.
func (p *Pool[T, V]) Process(ctx context.Context, jobsData []T, onResult func(Result[V])) []Result[V] {
	outputs := make([]Result[V], len(jobsData))
	if len(jobsData) == 0 {
		return outputs
	}

	workers := min(p.workers, len(jobsData))
	jobs := make(chan Job[T])
	results := make(chan Result[V], workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- p.processJobWithRecovery(ctx, job)
			}
		}()
	}

	go func() {
		defer close(jobs)
		p.sendJobs(ctx, jobs, jobsData)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := make([]bool, len(jobsData))
	for result := range results {
		outputs[result.JobID] = result
		done[result.JobID] = true
		if onResult != nil {
			onResult(result)
		}
	}

	for i := range outputs {
		if !done[i] {
			outputs[i] = Result[V]{JobID: i, Err: fmt.Errorf("job not started: %w", context.Cause(ctx))}
		}
	}
	return outputs
}

// sendJobs feeds jobs to the workers until all are sent or ctx ends.
func (p *Pool[T, V]) sendJobs(ctx context.Context, jobs chan<- Job[T], jobsData []T) {
	for i, data := range jobsData {
		// Prefer stopping over sending once ctx is done.
		if ctx.Err() != nil {
			return
		}
		select {
		case jobs <- Job[T]{ID: i, Data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// processJobWithRecovery runs a job, turning a panic into an error result.
func (p *Pool[T, V]) processJobWithRecovery(ctx context.Context, job Job[T]) (result Result[V]) {
	p.setActive(p.active.Add(1))
	defer func() {
		if r := recover(); r != nil {
			result = Result[V]{
				JobID: job.ID,
				Err:   fmt.Errorf("panic recovered in worker: %v", r),
			}
		}
		p.setActive(p.active.Add(-1))
	}()

	result = p.jobFunc(ctx, job)
	result.JobID = job.ID
	return result
}

func (p *Pool[T, V]) setActive(n int32) {
	if p.onActive != nil {
		p.onActive(int(n))
	}
}
