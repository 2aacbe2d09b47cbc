package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ConfigError is returned for general configuration loading and validation errors.
type ConfigError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error during '%s': %s", e.Op, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FileIOError is returned for file I/O related errors, including failure to write the export output.
type FileIOError struct {
	Op     string
	Path   string
	Reason string
	Err    error
}

func (e *FileIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("file I/O error during '%s' on '%s': %s", e.Op, e.Path, e.Reason)
	}
	return fmt.Sprintf("file I/O error during '%s': %s", e.Op, e.Reason)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

// InvalidInputError is returned when the import file cannot be opened, is not valid JSON,
// or does not carry a "docs" array.
type InvalidInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input '%s': %s", e.Path, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// RemoteError is returned when a request to the document store fails,
// either at the transport level (StatusCode == 0) or with a non-success status.
type RemoteError struct {
	Database   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("remote error on '%s' (%s): %v", e.Database, e.Op, e.Err)
		}
		return fmt.Sprintf("remote error on '%s' (%s)", e.Database, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote error on '%s' (%s): status %d: %v", e.Database, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote error on '%s' (%s): status %d, response: %s", e.Database, e.Op, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the request may succeed.
func (e *RemoteError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a failed request may succeed when repeated.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Temporary()
	}
	return false
}
