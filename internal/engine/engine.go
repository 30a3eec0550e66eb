// Package engine implements the file pipeline state machine as pure
// functions. It performs no I/O and holds no state of its own: all state
// lives in models.FileState, and the worker pool applies the decisions the
// engine computes.
package engine

import (
	"fmt"

	"github.com/harrison/fileloop/internal/models"
)

// Step is the external operation implied by an in-flight status.
type Step int

const (
	StepPrompt Step = iota
	StepVerify
	StepFixup
)

// String returns the step name used in logs and history records.
func (s Step) String() string {
	switch s {
	case StepPrompt:
		return "prompt"
	case StepVerify:
		return "verify"
	case StepFixup:
		return "fixup"
	default:
		return "unknown"
	}
}

// Outcome is the result of an external operation, as seen by the engine.
type Outcome int

const (
	// OutcomeSuccess means the operation ran and indicated success.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means the operation ran and indicated failure
	// (a failing verification exit code, for the verify step).
	OutcomeFailure

	// OutcomeError means the operation could not run or crashed abnormally.
	OutcomeError
)

// Decision is the output of one transition.
type Decision struct {
	// Next is the status the file moves to.
	Next models.FileStatus

	// ConsumeRetry is true when the transition spends one fixup attempt.
	ConsumeRetry bool

	// NeedsGuard is true when Next is Completed and the change-authorization
	// guard must approve the transition before it is applied.
	NeedsGuard bool
}

// Claim returns the in-flight status a worker moves a file to when it takes
// exclusive ownership of it. Only Pending and AwaitingVerification files are
// claimable.
func Claim(status models.FileStatus) (models.FileStatus, error) {
	switch status {
	case models.StatusPending:
		return models.StatusPromptInProgress, nil
	case models.StatusAwaitingVerification:
		return models.StatusVerifyInProgress, nil
	}
	return "", fmt.Errorf("status %q is not claimable", status)
}

// StepFor maps an in-flight status to the external operation to run.
func StepFor(status models.FileStatus) (Step, error) {
	switch status {
	case models.StatusPromptInProgress:
		return StepPrompt, nil
	case models.StatusVerifyInProgress:
		return StepVerify, nil
	case models.StatusFixupInProgress:
		return StepFixup, nil
	}
	return 0, fmt.Errorf("status %q has no step", status)
}

// Next computes the transition out of an in-flight status given the outcome
// of its external operation. hasVerify indicates whether the task configures
// a verification command; without one, prompt success alone completes the
// file and the verify/fixup loop is unreachable.
//
// The retry bound is a data invariant: a verification failure consumes a
// retry only while retryCount < maxRetries, so FixupInProgress is entered at
// most maxRetries times over a file's lifetime.
func Next(status models.FileStatus, retryCount, maxRetries int, outcome Outcome, hasVerify bool) (Decision, error) {
	switch status {
	case models.StatusPromptInProgress:
		switch outcome {
		case OutcomeSuccess:
			if hasVerify {
				return Decision{Next: models.StatusAwaitingVerification}, nil
			}
			return Decision{Next: models.StatusCompleted, NeedsGuard: true}, nil
		default:
			return Decision{Next: models.StatusFailed}, nil
		}

	case models.StatusVerifyInProgress:
		switch outcome {
		case OutcomeSuccess:
			return Decision{Next: models.StatusCompleted, NeedsGuard: true}, nil
		case OutcomeFailure:
			if retryCount < maxRetries {
				return Decision{Next: models.StatusFixupInProgress, ConsumeRetry: true}, nil
			}
			return Decision{Next: models.StatusFailed}, nil
		default:
			return Decision{Next: models.StatusFailed}, nil
		}

	case models.StatusFixupInProgress:
		// The fixup's own exit status does not matter: re-verification
		// decides. An executor crash still fails the file.
		if outcome == OutcomeError {
			return Decision{Next: models.StatusFailed}, nil
		}
		return Decision{Next: models.StatusAwaitingVerification}, nil
	}

	return Decision{}, fmt.Errorf("no transition from status %q", status)
}
