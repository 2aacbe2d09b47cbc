// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLevel is the log level used when not configured.
const DefaultLevel = slog.LevelInfo

const (
	maxLogFileSizeMB = 50
	maxLogFileBackup = 3
)

// ParseLevel converts a string log level to slog.Level.
// Supported values: "debug", "info", "warn", "error" (case-insensitive).
// Returns (DefaultLevel, false) if the string is not recognized.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return DefaultLevel, false
	}
}

// Manager owns the logger and the optional rotated log file.
type Manager struct {
	mu     sync.Mutex
	level  *slog.LevelVar
	base   slog.Handler
	logger *slog.Logger
	file   *lumberjack.Logger
}

// NewManager creates a manager logging text to stderr at DefaultLevel.
func NewManager() *Manager {
	return NewManagerWithWriter(os.Stderr)
}

// NewManagerWithWriter creates a manager logging text to w.
func NewManagerWithWriter(w io.Writer) *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Manager{
		level:  level,
		base:   base,
		logger: slog.New(base),
	}
}

// Logger returns the current logger.
func (m *Manager) Logger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

// SetLevel changes the log level at runtime.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// AddFile additionally writes JSON logs to path, rotated by size. A later call replaces the file.
func (m *Manager) AddFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
	}
	m.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogFileSizeMB,
		MaxBackups: maxLogFileBackup,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{Level: m.level}
	m.logger = slog.New(fanout{
		m.base,
		slog.NewJSONHandler(m.file, opts),
	})
}

// Close closes the log file, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
