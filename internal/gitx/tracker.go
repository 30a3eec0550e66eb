// Package gitx is the git collaborator: baseline dirty-file capture, change
// detection for the authorization guard, and the optional task-branch and
// auto-commit features. The core never diffs the filesystem itself; it only
// consumes the path sets this package reports.
package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/pattern"
)

// CommandRunner executes a git command and returns its combined output.
// Injected in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Tracker runs git commands in one working directory.
type Tracker struct {
	// WorkDir is the repository root (empty = current directory).
	WorkDir string

	// Runner overrides command execution for testing.
	Runner CommandRunner
}

// NewTracker creates a Tracker for the given working directory.
func NewTracker(workDir string) *Tracker {
	return &Tracker{WorkDir: workDir}
}

// IsRepo reports whether the working directory is inside a git repository.
func (t *Tracker) IsRepo(ctx context.Context) bool {
	_, err := t.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// CurrentBranch returns the checked-out branch name.
func (t *Tracker) CurrentBranch(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DirtyFiles returns every modified, added, deleted, or untracked path.
func (t *Tracker) DirtyFiles(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("failed to run git status: %w", err)
	}
	return parsePorcelain(out), nil
}

// parsePorcelain extracts paths from `git status --porcelain` output.
// Renames ("R  old -> new") report the new path.
func parsePorcelain(out string) []string {
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if path == "" {
			continue
		}
		if _, after, ok := strings.Cut(path, " -> "); ok {
			path = after
		}
		files = append(files, path)
	}
	return files
}

// Capture records the repository state before any processing begins: the
// original branch and the baseline of already-dirty files. When the working
// directory is not a repository the returned state is zero-valued and git
// features stay disabled.
func (t *Tracker) Capture(ctx context.Context) (models.GitState, error) {
	if !t.IsRepo(ctx) {
		return models.GitState{}, nil
	}

	branch, err := t.CurrentBranch(ctx)
	if err != nil {
		return models.GitState{}, err
	}
	dirty, err := t.DirtyFiles(ctx)
	if err != nil {
		return models.GitState{}, err
	}

	return models.GitState{
		OriginalBranch: branch,
		Baseline:       dirty,
	}, nil
}

// CreateTaskBranch creates and checks out a branch named after the task.
func (t *Tracker) CreateTaskBranch(ctx context.Context, taskID string) (string, error) {
	short := taskID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("fileloop/%s-%s", short, time.Now().Format("20060102-150405"))

	if _, err := t.run(ctx, "checkout", "-b", name); err != nil {
		return "", fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return name, nil
}

// CommitFile stages and commits the dirty files related to path (the file
// itself plus anything sharing its stem, e.g. generated tests) with the given
// message. Returns the commit hash, or "" when there was nothing to commit.
func (t *Tracker) CommitFile(ctx context.Context, path, message string) (string, error) {
	dirty, err := t.DirtyFiles(ctx)
	if err != nil {
		return "", err
	}

	stem := pattern.Stem(path)
	var related []string
	for _, p := range dirty {
		if p == path || strings.Contains(p, stem) {
			related = append(related, p)
		}
	}
	if len(related) == 0 {
		return "", nil
	}

	args := append([]string{"add", "--"}, related...)
	if _, err := t.run(ctx, args...); err != nil {
		return "", fmt.Errorf("failed to stage files for %s: %w", path, err)
	}

	if _, err := t.run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", path, err)
	}

	hash, err := t.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read commit hash: %w", err)
	}
	return strings.TrimSpace(hash), nil
}

// CommitMessage renders the auto-commit message for a completed file.
// template supports {file}, {file_stem}, and {task_id}; an empty template
// falls back to "fileloop: {file}".
func CommitMessage(template, path, taskID string) string {
	if template == "" {
		template = "fileloop: {file}"
	}
	return strings.NewReplacer(
		"{file}", path,
		"{file_stem}", pattern.Stem(path),
		"{task_id}", taskID,
	).Replace(template)
}

func (t *Tracker) run(ctx context.Context, args ...string) (string, error) {
	if t.Runner != nil {
		return t.Runner.Run(ctx, "git", args...)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if t.WorkDir != "" {
		cmd.Dir = t.WorkDir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%w: %s", err, string(output))
	}
	return string(output), nil
}
