package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FileState tracks one file through the pipeline. It is created Pending when
// the owning task is created and becomes immutable once Completed or Failed.
type FileState struct {
	Path       string          `json:"path"`
	Status     FileStatus      `json:"status"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`

	// Metadata is the opaque per-file blob from the input mapping. It is
	// carried verbatim to the external executor and never interpreted here.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// Result is the structured output reported by the executor for this
	// file, if any. Raw indicates the output could not be parsed as JSON
	// and is stored as a plain string.
	Result json.RawMessage `json:"result,omitempty"`
	Raw    bool            `json:"result_raw,omitempty"`
}

// GitSettings controls the optional git integration for a task.
type GitSettings struct {
	Enabled       bool   `json:"enabled"`
	AutoBranch    bool   `json:"auto_branch,omitempty"`
	AutoCommit    bool   `json:"auto_commit,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// GitState is the repository state captured before processing began.
type GitState struct {
	OriginalBranch string   `json:"original_branch,omitempty"`
	TaskBranch     string   `json:"task_branch,omitempty"`

	// Baseline holds files that were already dirty before the run started.
	// They are exempt from unauthorized-change checks.
	Baseline []string `json:"baseline,omitempty"`

	// GlobalAllowlist is the union of every processed file's expanded
	// allowlist pattern. With parallel workers, edits made on behalf of one
	// file must not be flagged as unauthorized while another file's step is
	// being checked.
	GlobalAllowlist []string `json:"global_allowlist,omitempty"`
}

// InBaseline reports whether path was dirty before the run started.
func (g *GitState) InBaseline(path string) bool {
	for _, p := range g.Baseline {
		if p == path {
			return true
		}
	}
	return false
}

// AddAllowlistPattern records an expanded allowlist pattern, deduplicated.
func (g *GitState) AddAllowlistPattern(p string) {
	for _, existing := range g.GlobalAllowlist {
		if existing == p {
			return
		}
	}
	g.GlobalAllowlist = append(g.GlobalAllowlist, p)
}

// Task is one orchestration run: a shared prompt/verify/fixup configuration
// applied to a set of files. The Files slice preserves input order so that
// scheduling is deterministic across resumes.
type Task struct {
	ID               string       `json:"id"`
	Description      string       `json:"description,omitempty"`
	Prompt           string       `json:"prompt"`
	FixupPrompt      string       `json:"fixup_prompt,omitempty"`
	VerifyCommand    string       `json:"verify_command,omitempty"`
	AllowlistPattern string       `json:"allowlist_pattern"`
	MaxRetries       int          `json:"max_retries"`
	Concurrency      int          `json:"concurrency"`
	MaxFiles         int          `json:"max_files,omitempty"`
	WorkingDir       string       `json:"working_dir"`
	Git              GitSettings  `json:"git"`
	GitState         GitState     `json:"git_state"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Files            []*FileState `json:"files"`

	// byPath indexes Files; rebuilt lazily after unmarshaling.
	byPath map[string]*FileState
}

// Validate checks the task configuration invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Prompt == "" {
		return errors.New("task prompt is required")
	}
	if t.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if t.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	seen := make(map[string]bool, len(t.Files))
	for _, fs := range t.Files {
		if fs.Path == "" {
			return errors.New("file state with empty path")
		}
		if seen[fs.Path] {
			return fmt.Errorf("duplicate file %q", fs.Path)
		}
		seen[fs.Path] = true
		if fs.RetryCount < 0 || fs.RetryCount > t.MaxRetries {
			return fmt.Errorf("file %q: retry count %d outside [0, %d]", fs.Path, fs.RetryCount, t.MaxRetries)
		}
	}
	return nil
}

// HasVerify reports whether a verification command is configured. Without
// one the pipeline has no verify/fixup loop and prompt success alone
// completes a file.
func (t *Task) HasVerify() bool {
	return t.VerifyCommand != ""
}

// File returns the state for path, or nil if the task does not know it.
func (t *Task) File(path string) *FileState {
	if t.byPath == nil {
		t.byPath = make(map[string]*FileState, len(t.Files))
		for _, fs := range t.Files {
			t.byPath[fs.Path] = fs
		}
	}
	return t.byPath[path]
}

// AddFile appends a Pending file with its metadata. Files already known keep
// their existing state, so merging an input mapping into a resumed task never
// rewinds progress.
func (t *Task) AddFile(path string, metadata json.RawMessage) *FileState {
	if fs := t.File(path); fs != nil {
		return fs
	}
	fs := &FileState{
		Path:     path,
		Status:   StatusPending,
		Metadata: metadata,
	}
	t.Files = append(t.Files, fs)
	t.byPath[path] = fs
	return fs
}

// Done reports whether every file reached a terminal status.
func (t *Task) Done() bool {
	for _, fs := range t.Files {
		if !fs.Status.Terminal() {
			return false
		}
	}
	return true
}

// Summary counts files per status.
type Summary struct {
	Total                int
	Pending              int
	PromptInProgress     int
	AwaitingVerification int
	VerifyInProgress     int
	FixupInProgress      int
	Completed            int
	Failed               int
}

// Summarize tallies the current status of every file.
func (t *Task) Summarize() Summary {
	s := Summary{Total: len(t.Files)}
	for _, fs := range t.Files {
		switch fs.Status {
		case StatusPending:
			s.Pending++
		case StatusPromptInProgress:
			s.PromptInProgress++
		case StatusAwaitingVerification:
			s.AwaitingVerification++
		case StatusVerifyInProgress:
			s.VerifyInProgress++
		case StatusFixupInProgress:
			s.FixupInProgress++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
