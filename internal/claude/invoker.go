// Package claude implements the external-executor contract on top of the
// Claude CLI. Prompt and fixup steps invoke the claude binary; verification
// runs an arbitrary shell command.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/harrison/fileloop/internal/executor"
)

// Invoker runs Claude CLI and shell commands for the worker pool. Create
// once, use from many workers concurrently.
type Invoker struct {
	// ClaudePath is the claude binary. Defaults to "claude".
	ClaudePath string

	// WorkDir is the directory commands run in (empty = current dir).
	WorkDir string

	// Timeout bounds each invocation. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// NewInvoker creates an Invoker with default settings.
func NewInvoker(workDir string) *Invoker {
	return &Invoker{
		ClaudePath: "claude",
		WorkDir:    workDir,
	}
}

// Prompt implements executor.Executor. It builds the full prompt (fixup form
// when ErrorContext is set), runs the CLI, and parses the RESULT: line.
func (inv *Invoker) Prompt(ctx context.Context, req executor.PromptRequest) (executor.StepOutput, error) {
	var prompt string
	if req.ErrorContext != "" {
		prompt = BuildFixupPrompt(req.Base, req.File, req.ErrorContext, req.Allowlist)
	} else {
		prompt = BuildPrompt(req.Base, req.File, req.Metadata, req.Allowlist)
	}

	path := inv.ClaudePath
	if path == "" {
		path = "claude"
	}

	out, err := inv.runCommand(ctx, path, "-p", prompt, "--dangerously-skip-permissions")
	if err != nil {
		return executor.StepOutput{}, fmt.Errorf("claude invocation failed: %w", err)
	}

	out.Result, out.ResultRaw = ParseResult(out.Stdout)
	return out, nil
}

// Verify implements executor.Executor by running the command through the
// shell. A non-zero exit is reported in StepOutput, not as an error; an
// error means the command could not run at all.
func (inv *Invoker) Verify(ctx context.Context, command string) (executor.StepOutput, error) {
	return inv.runCommand(ctx, "sh", "-c", command)
}

func (inv *Invoker) runCommand(ctx context.Context, name string, args ...string) (executor.StepOutput, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if inv.WorkDir != "" {
		cmd.Dir = inv.WorkDir
	}
	SetCleanEnv(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := executor.StepOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The command ran and exited non-zero.
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		// Could not start, or was killed before completing.
		return out, err
	}
	return out, nil
}

// Compile-time contract check.
var _ executor.Executor = (*Invoker)(nil)
