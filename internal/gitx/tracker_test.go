package gitx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner replays canned output per git subcommand and records calls.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := args[0]
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if err := f.errs[key]; err != nil {
		return "", err
	}
	return f.outputs[key], nil
}

func TestParsePorcelain(t *testing.T) {
	out := " M src/main.go\n?? new_file.txt\nR  old.go -> renamed.go\n\nxx\n"

	files := parsePorcelain(out)
	assert.Equal(t, []string{"src/main.go", "new_file.txt", "renamed.go"}, files)
}

func TestCaptureNotARepo(t *testing.T) {
	tr := &Tracker{Runner: &fakeRunner{errs: map[string]error{"rev-parse": assert.AnError}}}

	state, err := tr.Capture(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.OriginalBranch)
	assert.Empty(t, state.Baseline)
}

func TestCapture(t *testing.T) {
	tr := &Tracker{Runner: &fakeRunner{outputs: map[string]string{
		"rev-parse": "main\n",
		"status":    " M dirty.go\n?? untracked.txt\n",
	}}}

	state, err := tr.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", state.OriginalBranch)
	assert.Equal(t, []string{"dirty.go", "untracked.txt"}, state.Baseline)
	assert.True(t, state.InBaseline("dirty.go"))
	assert.False(t, state.InBaseline("clean.go"))
}

func TestCommitFileNothingToCommit(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"status": ""}}
	tr := &Tracker{Runner: runner}

	hash, err := tr.CommitFile(context.Background(), "src/parser.go", "msg")
	require.NoError(t, err)
	assert.Empty(t, hash)

	// Neither add nor commit should have run.
	for _, call := range runner.calls {
		assert.NotContains(t, call, "git add")
		assert.NotContains(t, call, "git commit")
	}
}

func TestCommitFileStagesRelated(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"status":    " M src/parser.go\n M src/parser_test.go\n M src/other.go\n",
		"rev-parse": "abc123\n",
	}}
	tr := &Tracker{Runner: runner}

	hash, err := tr.CommitFile(context.Background(), "src/parser.go", "fileloop: parser.go")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)

	var addCall string
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "git add") {
			addCall = call
		}
	}
	require.NotEmpty(t, addCall)
	assert.Contains(t, addCall, "src/parser.go")
	assert.Contains(t, addCall, "src/parser_test.go")
	assert.NotContains(t, addCall, "src/other.go")
}

func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "fileloop: src/a.go", CommitMessage("", "src/a.go", "t1"))
	assert.Equal(t,
		"chore(a): update for task-9",
		CommitMessage("chore({file_stem}): update for {task_id}", "src/a.go", "task-9"))
}

func TestCreateTaskBranchName(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{}}
	tr := &Tracker{Runner: runner}

	name, err := tr.CreateTaskBranch(context.Background(), "0123456789abcdef")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "fileloop/01234567-"), name)
}
