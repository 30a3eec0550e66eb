package executor

import (
	"fmt"
	"time"
)

// Per-file error kinds. These are fully contained: they terminate one file's
// pipeline but never abort the task. Systemic errors (persistence, resume)
// live in the store package.

// ExecutorError means an external prompt or fixup invocation could not run
// or crashed abnormally.
type ExecutorError struct {
	File      string
	Step      string
	Err       error
	Timestamp time.Time
}

// NewExecutorError wraps an invocation failure with file and step context.
func NewExecutorError(file, step string, err error) *ExecutorError {
	return &ExecutorError{File: file, Step: step, Err: err, Timestamp: time.Now()}
}

// Error implements the error interface.
func (e *ExecutorError) Error() string {
	return fmt.Sprintf("%s step for %s could not run: %v", e.Step, e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// VerificationFailure means the verify command ran and exited non-zero. It
// consumes one retry while the budget lasts.
type VerificationFailure struct {
	File     string
	Command  string
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *VerificationFailure) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("verification failed for %s (exit %d)", e.File, e.ExitCode)
	}
	return fmt.Sprintf("verification failed for %s (exit %d): %s", e.File, e.ExitCode, e.Output)
}

// AuthorizationViolation means the change-authorization guard vetoed a
// transition to Completed. Never retried.
type AuthorizationViolation struct {
	File         string
	Unauthorized []string
}

// Error implements the error interface.
func (e *AuthorizationViolation) Error() string {
	return fmt.Sprintf("unauthorized changes while processing %s: %v", e.File, e.Unauthorized)
}
