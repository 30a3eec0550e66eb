package executor

import (
	"context"
	"encoding/json"

	"github.com/harrison/fileloop/internal/history"
	"github.com/harrison/fileloop/internal/models"
)

// PromptRequest describes one prompt or fixup invocation. The core fills it
// from task configuration and file state; how the prompt is assembled and
// delivered is the executor's business.
type PromptRequest struct {
	// Base is the raw prompt text configured on the task.
	Base string

	// File is the path the step is working on.
	File string

	// Metadata is the file's opaque input blob, passed through verbatim.
	Metadata json.RawMessage

	// Allowlist is the file's expanded allowlist pattern, for inclusion in
	// the prompt so the agent knows its write boundary.
	Allowlist string

	// ErrorContext carries the failing verification output for fixup
	// prompts. Empty for the initial prompt step.
	ErrorContext string
}

// StepOutput is what an external operation produced. A non-nil error from
// the Executor means the operation could not run at all; StepOutput reports
// the result of an operation that did run.
type StepOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string

	// Result and ResultRaw hold the structured result the executor parsed
	// from the output, if any. Raw means it could not be parsed as JSON.
	Result    json.RawMessage
	ResultRaw bool
}

// Failed reports whether the operation ran but indicated failure.
func (o StepOutput) Failed() bool {
	return o.ExitCode != 0
}

// Detail returns the output most useful as failure detail: stderr when
// present, stdout otherwise.
func (o StepOutput) Detail() string {
	if o.Stderr != "" {
		return o.Stderr
	}
	return o.Stdout
}

// Executor is the external collaborator that performs prompt, fixup, and
// verification work. Implementations must be safe for concurrent use: one
// call may be in flight per worker.
type Executor interface {
	// Prompt runs a prompt or fixup invocation.
	Prompt(ctx context.Context, req PromptRequest) (StepOutput, error)

	// Verify runs an already-expanded verification command.
	Verify(ctx context.Context, command string) (StepOutput, error)
}

// ChangeTracker is the git collaborator consumed by the pool: change capture
// for the authorization guard and auto-commit of completed files.
type ChangeTracker interface {
	DirtyFiles(ctx context.Context) ([]string, error)
	CommitFile(ctx context.Context, path, message string) (string, error)
}

// AttemptRecorder persists per-step attempt records. Recording is
// best-effort; failures are logged and never affect the run.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a history.Attempt) error
}

// Saver is the slice of the persistence layer the pool needs. Every
// transition is funneled through it before the transition is considered
// complete.
type Saver interface {
	SaveTask(t *models.Task) error
}

// Logger receives leveled progress messages plus the final summary.
// All methods must be safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Summary(report *models.Report)
}
