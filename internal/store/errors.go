package store

import "fmt"

// PersistenceError reports a failed durable write. It is systemic: the
// orchestrator treats it as fatal to the whole run, since no transition may
// be considered complete without a persisted record.
type PersistenceError struct {
	Path string // file that could not be written
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ResumeInconsistencyError reports that the registry references a task whose
// state record is missing or corrupt. It is fatal at resume time, surfaced
// before any worker starts.
type ResumeInconsistencyError struct {
	TaskID string
	Path   string // state file the registry pointed at
	Err    error
}

// Error implements the error interface.
func (e *ResumeInconsistencyError) Error() string {
	return fmt.Sprintf("task %s: state record %s is unusable: %v", e.TaskID, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResumeInconsistencyError) Unwrap() error {
	return e.Err
}
