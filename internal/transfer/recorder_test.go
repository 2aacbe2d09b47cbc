package transfer

import (
	"context"
	"couchtransfer/internal/common"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"status", &common.RemoteError{StatusCode: 500}, "status_500"},
		{"wrapped status", fmt.Errorf("page 1: %w", &common.RemoteError{StatusCode: 409}), "status_409"},
		{"transport", &common.RemoteError{Err: errors.New("connection refused")}, "transport"},
		{"undecodable reply", &common.RemoteError{StatusCode: 200, Err: errors.New("decode response: unexpected EOF")}, "decode"},
		{"canceled", fmt.Errorf("job not started: %w", context.Canceled), "canceled"},
		{"skipped", ErrSkipped, "skipped"},
		{"other", errors.New("panic recovered in worker"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}

func TestErrorAttrs(t *testing.T) {
	err := &common.RemoteError{Op: "bulk docs", StatusCode: 500, Body: `{"error":"boom"}`}
	assert.Equal(t, []any{"error", err, "status", 500, "body", `{"error":"boom"}`}, ErrorAttrs(err))

	plain := errors.New("connection reset")
	assert.Equal(t, []any{"error", plain}, ErrorAttrs(plain))
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.AddTotalDocuments("export", "db", 1)
		r.SetActiveWorkers("import", 2)
	})
}
