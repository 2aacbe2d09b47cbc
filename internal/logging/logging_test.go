package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"verbose", DefaultLevel, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.level, level, "level for %q", tt.in)
		assert.Equal(t, tt.ok, ok, "ok for %q", tt.in)
	}
}

func TestManager_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf)

	m.Logger().Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	m.SetLevel(slog.LevelDebug)
	m.Logger().Debug("shown", "batch", 3)
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "batch=3")
}

func TestManager_AddFile(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf)
	path := filepath.Join(t.TempDir(), "couchtransfer.log")

	m.AddFile(path)
	m.Logger().Warn("batch failed", "status", 500)
	require.NoError(t, m.Close())

	assert.Contains(t, buf.String(), "batch failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "batch failed", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, float64(500), record["status"])
}

func TestManager_CloseWithoutFile(t *testing.T) {
	m := NewManagerWithWriter(&bytes.Buffer{})
	assert.NoError(t, m.Close())
}

func TestFanout_WithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	}
	logger := slog.New(h).With("component", "importer")
	logger.Info("hello")

	assert.Contains(t, a.String(), "component=importer")
	assert.Contains(t, b.String(), "component=importer")
}
