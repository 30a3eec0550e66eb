package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fileloop/internal/store"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "files.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommandSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "resume", "tasks", "history"} {
		assert.Contains(t, names, want)
	}
	assert.True(t, root.SilenceUsage)
}

func TestRunRequiresPrompt(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, `{"a.go": null}`)

	_, err := executeCLI(t, "run", input,
		"--tasks-dir", filepath.Join(dir, "tasks"), "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is required")
}

func TestRunRequiresFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCLI(t, "run",
		"--prompt", "Edit {file}",
		"--tasks-dir", filepath.Join(dir, "tasks"), "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files to process")
}

func TestRunDryRunCreatesTask(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, `{"src/a.go": null, "src/b.go": {"schema": "v2"}}`)
	tasksDir := filepath.Join(dir, "tasks")

	out, err := executeCLI(t, "run", input,
		"--prompt", "Edit {file}",
		"--description", "test batch",
		"--tasks-dir", tasksDir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Created task")
	assert.Contains(t, out, "2 files")
	assert.Contains(t, out, "Dry-run")

	st, err := store.Open(tasksDir)
	require.NoError(t, err)
	reg, err := st.LoadRegistry()
	require.NoError(t, err)
	require.Len(t, reg.Tasks, 1)
	assert.Equal(t, store.RegistryStatusRunning, reg.Tasks[0].Status)
	assert.Equal(t, "test batch", reg.Tasks[0].Description)

	task, err := st.LoadTask(reg.Tasks[0].TaskID)
	require.NoError(t, err)
	require.Len(t, task.Files, 2)
	assert.Equal(t, "src/a.go", task.Files[0].Path)
	assert.JSONEq(t, `{"schema": "v2"}`, string(task.Files[1].Metadata))
}

func TestRunTaskFileProvidesConfiguration(t *testing.T) {
	dir := t.TempDir()
	taskFile := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(taskFile, []byte(`---
description: from task file
concurrency: 2
files:
  - a.go
---

## Prompt

Edit {file}.

## Verify

make check
`), 0644))
	tasksDir := filepath.Join(dir, "tasks")

	_, err := executeCLI(t, "run",
		"--task-file", taskFile,
		"--tasks-dir", tasksDir, "--dry-run")
	require.NoError(t, err)

	st, err := store.Open(tasksDir)
	require.NoError(t, err)
	reg, err := st.LoadRegistry()
	require.NoError(t, err)
	require.Len(t, reg.Tasks, 1)

	task, err := st.LoadTask(reg.Tasks[0].TaskID)
	require.NoError(t, err)
	assert.Equal(t, "from task file", task.Description)
	assert.Equal(t, 2, task.Concurrency)
	assert.Equal(t, "make check", task.VerifyCommand)
	require.Len(t, task.Files, 1)
}

func TestRunFlagsOverrideTaskFile(t *testing.T) {
	dir := t.TempDir()
	taskFile := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(taskFile, []byte(`---
concurrency: 2
files: [a.go]
---

## Prompt

Edit {file}.
`), 0644))

	tasksDir := filepath.Join(dir, "tasks")
	_, err := executeCLI(t, "run",
		"--task-file", taskFile,
		"--concurrency", "7",
		"--tasks-dir", tasksDir, "--dry-run")
	require.NoError(t, err)

	st, _ := store.Open(tasksDir)
	reg, err := st.LoadRegistry()
	require.NoError(t, err)
	task, err := st.LoadTask(reg.Tasks[0].TaskID)
	require.NoError(t, err)
	assert.Equal(t, 7, task.Concurrency)
}

func TestTasksCommandListsRegistry(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, `{"a.go": null}`)
	tasksDir := filepath.Join(dir, "tasks")

	_, err := executeCLI(t, "run", input,
		"--prompt", "Edit {file}",
		"--description", "listed batch",
		"--tasks-dir", tasksDir, "--dry-run")
	require.NoError(t, err)

	out, err := executeCLI(t, "tasks", "--tasks-dir", tasksDir)
	require.NoError(t, err)
	assert.Contains(t, out, "listed batch")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "0/1 done")
}

func TestTasksCommandEmpty(t *testing.T) {
	out, err := executeCLI(t, "tasks", "--tasks-dir", filepath.Join(t.TempDir(), "tasks"))
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks recorded")
}

func TestResumeNothingToResume(t *testing.T) {
	out, err := executeCLI(t, "resume", "--tasks-dir", filepath.Join(t.TempDir(), "tasks"))
	require.NoError(t, err)
	assert.Contains(t, out, "No incomplete tasks")
}

func TestHistoryCommandEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	out, err := executeCLI(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No attempts recorded")
}
