package transfer

import (
	"context"
	"couchtransfer/internal/common"
	"errors"
	"strconv"
	"time"
)

// Recorder receives transfer metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	AddTotalDocuments(direction, database string, count int64)
	AddTransferredDocuments(direction, database string, count int64)
	AddFailedDocuments(direction, database, errorType string, count int64)
	IncrementFailedUnits(direction, database string)
	RecordTransferDuration(direction, database, status string, duration time.Duration, transferred int64)
	SetActiveWorkers(stage string, count int)
}

// NopRecorder discards all metrics.
type NopRecorder struct{}

func (NopRecorder) AddTotalDocuments(string, string, int64) {}
func (NopRecorder) AddTransferredDocuments(string, string, int64) {}
func (NopRecorder) AddFailedDocuments(string, string, string, int64) {}
func (NopRecorder) IncrementFailedUnits(string, string) {}
func (NopRecorder) RecordTransferDuration(string, string, string, time.Duration, int64) {}
func (NopRecorder) SetActiveWorkers(string, int) {}

// Status returns the duration label for a summary.
func (s Summary) Status() string {
	if s.Complete() {
		return "success"
	}
	return "partial"
}

// ErrorType classifies err for the error_type metric label.
func ErrorType(err error) string {
	var remoteErr *common.RemoteError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrSkipped):
		return "skipped"
	case errors.As(err, &remoteErr) && remoteErr.StatusCode != 0 && remoteErr.Err != nil:
		return "decode"
	case errors.As(err, &remoteErr) && remoteErr.StatusCode != 0:
		return "status_" + strconv.Itoa(remoteErr.StatusCode)
	case errors.As(err, &remoteErr):
		return "transport"
	default:
		return "other"
	}
}

// ErrorAttrs returns slog attributes describing err, including the response status and
// body of a rejected request.
func ErrorAttrs(err error) []any {
	attrs := []any{"error", err}
	var remoteErr *common.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.StatusCode != 0 {
		attrs = append(attrs, "status", remoteErr.StatusCode, "body", remoteErr.Body)
	}
	return attrs
}
