// Package transfer aggregates the per-page and per-batch outcomes of a run.
package transfer

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/multierr"
)

var (
	// ErrPartialTransfer is returned when at least one page or batch failed.
	ErrPartialTransfer = errors.New("transfer incomplete")
	// ErrSkipped marks a unit that was never attempted because an earlier one failed.
	ErrSkipped = errors.New("skipped after an earlier failure")
)

// Outcome is the tagged result of one page (export) or batch (import).
type Outcome struct {
	Index  int
	Offset int
	// Count is the number of documents moved on success, or the number of documents the
	// unit was expected to carry on failure.
	Count int
	Err   error
}

// Succeeded reports whether the unit completed.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// FailedUnit describes a failed page or batch.
type FailedUnit struct {
	Index  int
	Offset int
	Count  int
	Err    error
}

func (f FailedUnit) String() string {
	return fmt.Sprintf("#%d (offset %d, %d documents): %v", f.Index, f.Offset, f.Count, f.Err)
}

// Summary is the result of a whole transfer.
type Summary struct {
	// Expected is the number of documents known at the start.
	Expected int64
	// Transferred is the number of documents moved by successful units.
	Transferred int64
	// Units is the number of pages or batches attempted.
	Units  int
	Failed []FailedUnit
}

// Summarize folds outcomes into a Summary.
func Summarize(expected int64, outcomes []Outcome) Summary {
	succeeded, failed := lo.FilterReject(outcomes, func(o Outcome, _ int) bool {
		return o.Succeeded()
	})

	return Summary{
		Expected: expected,
		Transferred: lo.SumBy(succeeded, func(o Outcome) int64 {
			return int64(o.Count)
		}),
		Units: len(outcomes),
		Failed: lo.Map(failed, func(o Outcome, _ int) FailedUnit {
			return FailedUnit{Index: o.Index, Offset: o.Offset, Count: o.Count, Err: o.Err}
		}),
	}
}

// Complete reports whether no unit failed.
func (s Summary) Complete() bool {
	return len(s.Failed) == 0
}

// Err returns nil for a complete transfer. Otherwise it wraps ErrPartialTransfer together
// with every unit failure.
func (s Summary) Err() error {
	if s.Complete() {
		return nil
	}
	errs := lo.Map(s.Failed, func(f FailedUnit, _ int) error {
		return fmt.Errorf("unit #%d (offset %d, %d documents): %w", f.Index, f.Offset, f.Count, f.Err)
	})
	return multierr.Append(
		fmt.Errorf("%w: %d of %d units failed", ErrPartialTransfer, len(s.Failed), s.Units),
		multierr.Combine(errs...),
	)
}
