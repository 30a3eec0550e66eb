package models

import "fmt"

// FileStatus is the position of a file in the processing pipeline.
type FileStatus string

const (
	// StatusPending means the file has not been started.
	StatusPending FileStatus = "pending"

	// StatusPromptInProgress means a worker is running the prompt step.
	StatusPromptInProgress FileStatus = "prompt_in_progress"

	// StatusAwaitingVerification means the prompt step finished and the file
	// is waiting to be verified.
	StatusAwaitingVerification FileStatus = "awaiting_verification"

	// StatusVerifyInProgress means a worker is running the verification command.
	StatusVerifyInProgress FileStatus = "verify_in_progress"

	// StatusFixupInProgress means verification failed and a fixup prompt is running.
	StatusFixupInProgress FileStatus = "fixup_in_progress"

	// StatusCompleted means the file finished successfully. Terminal.
	StatusCompleted FileStatus = "completed"

	// StatusFailed means the file failed permanently. Terminal.
	StatusFailed FileStatus = "failed"
)

// Terminal reports whether no further transitions can occur for this status.
func (s FileStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InFlight reports whether the status marks a step that was running when it
// was persisted. An in-flight status found on disk at resume time means the
// process died mid-step and the step must be restarted from scratch.
func (s FileStatus) InFlight() bool {
	switch s {
	case StatusPromptInProgress, StatusVerifyInProgress, StatusFixupInProgress:
		return true
	}
	return false
}

// ParseFileStatus validates a status string read from a persisted record.
func ParseFileStatus(raw string) (FileStatus, error) {
	switch s := FileStatus(raw); s {
	case StatusPending, StatusPromptInProgress, StatusAwaitingVerification,
		StatusVerifyInProgress, StatusFixupInProgress, StatusCompleted, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("unknown file status %q", raw)
}
