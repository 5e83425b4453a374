package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SpawnError represents a worker process that could not be started.
type SpawnError struct {
	Entry string // Entry name the pipeline was built for
	Role  string // Worker role: producer, filter, converter
	Err   error
}

// Error implements the error interface for SpawnError.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("entry %s: failed to start %s worker: %v", e.Entry, e.Role, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// PipeError represents a failure to create a pipe link.
type PipeError struct {
	Entry string
	Link  string // "A" (producer to filter) or "B" (filter to orchestrator)
	Err   error
}

// Error implements the error interface for PipeError.
func (e *PipeError) Error() string {
	return fmt.Sprintf("entry %s: failed to create pipe link %s: %v", e.Entry, e.Link, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PipeError) Unwrap() error {
	return e.Err
}

// IOError represents an open/read/write/stat failure on a specific path.
type IOError struct {
	Entry string
	Op    string // What was being done, e.g. "write report"
	Path  string
	Err   error
}

// Error implements the error interface for IOError.
func (e *IOError) Error() string {
	return fmt.Sprintf("entry %s: %s %s: %v", e.Entry, e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents filter output that is not a non-negative integer.
type ParseError struct {
	Entry  string
	Output string // The raw line read from the filter, newline trimmed
	Err    error  // Read or conversion error, may be nil
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.Output == "" {
		sb.WriteString(fmt.Sprintf("entry %s: filter produced no result line", e.Entry))
	} else {
		sb.WriteString(fmt.Sprintf("entry %s: invalid filter result %q", e.Entry, e.Output))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// WorkerExitError represents a worker that exited unsuccessfully.
type WorkerExitError struct {
	Entry    string
	Role     string
	PID      int
	ExitCode int // -1 when terminated by a signal
}

// Error implements the error interface for WorkerExitError.
func (e *WorkerExitError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("entry %s: %s worker (pid %d) terminated by signal", e.Entry, e.Role, e.PID)
	}
	return fmt.Sprintf("entry %s: %s worker (pid %d) exited with code %d", e.Entry, e.Role, e.PID, e.ExitCode)
}

// TimeoutError represents a filter result that did not arrive in time.
type TimeoutError struct {
	Entry   string
	Timeout time.Duration
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("entry %s: no filter result after %v", e.Entry, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsSpawnError checks if the error is or wraps a SpawnError.
func IsSpawnError(err error) bool {
	var se *SpawnError
	return err != nil && errors.As(err, &se)
}

// IsPipeError checks if the error is or wraps a PipeError.
func IsPipeError(err error) bool {
	var pe *PipeError
	return err != nil && errors.As(err, &pe)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return err != nil && errors.As(err, &te)
}

// ErrorKind returns a short label for err, used in summary lines and the
// run history.
func ErrorKind(err error) string {
	var (
		spawnErr   *SpawnError
		pipeErr    *PipeError
		ioErr      *IOError
		parseErr   *ParseError
		exitErr    *WorkerExitError
		timeoutErr *TimeoutError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &spawnErr):
		return "spawn"
	case errors.As(err, &pipeErr):
		return "pipe"
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &exitErr):
		return "worker-exit"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
