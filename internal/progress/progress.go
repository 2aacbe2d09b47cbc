package progress

import (
	"context"
	"couchtransfer/internal/common"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultUpdateInterval = 1 * time.Second
)

// Phase names reported by the exporter and importer.
const (
	PhaseMetadata = "metadata"
	PhasePages    = "pages"
	PhaseRead     = "read"
	PhaseCreate   = "create"
	PhaseBatches  = "batches"
	PhaseWrite    = "write"
)

// Reporter receives progress events. It is purely observational and must never
// influence a transfer.
type Reporter interface {
	// Start begins a new phase with a known total (0 when unknown).
	Start(phase string, total int64)
	// Add records n more processed items in the current phase.
	Add(n int64)
	// Finish ends the current phase.
	Finish()
}

// Nop is a Reporter that discards every event.
type Nop struct{}

func (Nop) Start(string, int64) {}
func (Nop) Add(int64) {}
func (Nop) Finish() {}

// Status contains information about the progress of the current phase.
type Status struct {
	Phase      string
	Processed  int64
	Total      int64
	Percentage float64
	Rate       float64
	ETA        time.Duration
	Elapsed    time.Duration
}

// Tracker renders a single progress line per phase on a terminal.
type Tracker struct {
	out            io.Writer
	updateInterval time.Duration

	mu        sync.RWMutex
	phase     string
	total     int64
	startTime time.Time

	processed atomic.Int64

	// Rate calculation.
	lastProcessed int64
	lastRateTime  time.Time
	currentRate   float64

	// Display control.
	ctx      context.Context
	stopChan chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker that writes to out. The display loop stops when ctx is done.
func NewTracker(ctx context.Context, out io.Writer, updateInterval time.Duration) *Tracker {
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	return &Tracker{
		out:            out,
		updateInterval: updateInterval,
		ctx:            ctx,
	}
}

// Start begins tracking a new phase and starts the display loop.
func (pt *Tracker) Start(phase string, total int64) {
	pt.Finish()

	now := time.Now()
	pt.mu.Lock()
	pt.phase = phase
	pt.total = total
	pt.startTime = now
	pt.lastProcessed = 0
	pt.lastRateTime = now
	pt.currentRate = 0
	pt.stopChan = make(chan struct{})
	pt.done = make(chan struct{})
	stop, done := pt.stopChan, pt.done
	pt.mu.Unlock()
	pt.processed.Store(0)

	go pt.displayProgress(stop, done)
}

// Add records n processed items.
func (pt *Tracker) Add(n int64) {
	pt.processed.Add(n)
}

// Finish stops the display loop and prints the final line of the phase.
func (pt *Tracker) Finish() {
	pt.mu.Lock()
	stop, done := pt.stopChan, pt.done
	pt.stopChan, pt.done = nil, nil
	pt.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	pt.displayProgressLine()
	fmt.Fprintln(pt.out)
}

// GetProgressStatus returns the current progress status.
func (pt *Tracker) GetProgressStatus() Status {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	processed := pt.processed.Load()
	elapsed := time.Since(pt.startTime)

	var percentage float64
	if pt.total > 0 {
		percentage = float64(processed) / float64(pt.total) * 100
	}

	var eta time.Duration
	if pt.currentRate > 0 {
		remaining := pt.total - processed
		if remaining > 0 {
			eta = time.Duration(float64(remaining)/pt.currentRate) * time.Second
		}
	}

	return Status{
		Phase:      pt.phase,
		Processed:  processed,
		Total:      pt.total,
		Percentage: percentage,
		Rate:       pt.currentRate,
		ETA:        eta,
		Elapsed:    elapsed,
	}
}

// displayProgress displays progress updates at regular intervals.
func (pt *Tracker) displayProgress(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pt.updateInterval)
	defer ticker.Stop()

	var ctxDone <-chan struct{}
	if pt.ctx != nil {
		ctxDone = pt.ctx.Done()
	}

	for {
		select {
		case <-ctxDone:
			return
		case <-stop:
			return
		case <-ticker.C:
			pt.updateRate()
			pt.displayProgressLine()
		}
	}
}

// updateRate calculates the current processing rate.
func (pt *Tracker) updateRate() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := time.Now()
	currentProcessed := pt.processed.Load()

	timeDiff := now.Sub(pt.lastRateTime).Seconds()
	if timeDiff > 0 {
		pt.currentRate = float64(currentProcessed-pt.lastProcessed) / timeDiff
	}

	pt.lastProcessed = currentProcessed
	pt.lastRateTime = now
}

// displayProgressLine displays a single line with progress information.
func (pt *Tracker) displayProgressLine() {
	status := pt.GetProgressStatus()

	if status.Percentage >= 100.0 && status.Elapsed > 0 {
		status.Rate = float64(status.Total) / status.Elapsed.Seconds()
	}

	// Clear the current line.
	fmt.Fprint(pt.out, "\r\033[K")

	if status.Total <= 0 {
		fmt.Fprintf(pt.out, "▶ %-8s %s items", status.Phase, common.FormatNumber(int(status.Processed)))
		return
	}

	fmt.Fprintf(pt.out,
		"▶ %-8s %s/%s items (%.1f%%) | %s items/sec | %s left",
		status.Phase,
		common.FormatNumber(int(status.Processed)),
		common.FormatNumber(int(status.Total)),
		status.Percentage,
		common.FormatNumber(int(status.Rate)),
		common.FormatDuration(status.ETA),
	)
}
