package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/fileloop/internal/config"
	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/store"
)

// NewResumeCommand creates the resume command
func NewResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [task-id]",
		Short: "Resume an interrupted task",
		Long: `Resume a previously created task from its persisted state.

Without a task id, the oldest incomplete task in the registry is resumed.
Files that had finished stay finished; files that were mid-operation when
the previous run stopped are restarted from their last durable state.

Flags explicitly set on the command line override the task's persisted
configuration for this and future runs.

Examples:
  fileloop resume
  fileloop resume 4fa2c361-9a5e-4f0c-8d9f-2f1f6f6f0a11
  fileloop resume --concurrency 2 --max-retries 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: resumeCommand,
	}

	addExecutionFlags(cmd)
	cmd.Flags().String("prompt", "", "Override the task's prompt")
	cmd.Flags().String("fixup", "", "Override the task's fixup prompt")
	cmd.Flags().String("verify", "", "Override the task's verification command")

	return cmd
}

// resumeCommand implements the resume command logic
func resumeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigForCommand(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.TasksDir)
	if err != nil {
		return err
	}

	var id string
	if len(args) == 1 {
		id = args[0]
	}

	task, err := st.Resume(id)
	if errors.Is(err, store.ErrNothingToResume) {
		fmt.Fprintf(cmd.OutOrStdout(), "No incomplete tasks to resume.\n")
		return nil
	}
	if err != nil {
		return err
	}

	if applyOverrides(cmd, cfg, task) {
		if err := st.SaveTask(task); err != nil {
			return err
		}
	}

	summary := task.Summarize()
	fmt.Fprintf(cmd.OutOrStdout(), "Resuming task %s: %d of %d file(s) remaining\n",
		task.ID, summary.Total-summary.Completed-summary.Failed, summary.Total)

	return executeTask(cmd, cfg, st, task)
}

// applyOverrides writes explicitly-set flag values into the persisted task
// configuration. It reports whether anything changed.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, task *models.Task) bool {
	changed := false

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
			changed = true
		}
	}

	set("concurrency", func() { task.Concurrency = cfg.Concurrency })
	set("max-retries", func() { task.MaxRetries = cfg.MaxRetries })
	set("allowlist", func() { task.AllowlistPattern = cfg.Allowlist })
	set("git", func() { task.Git.Enabled = cfg.Git.Enabled })
	set("git-branch", func() { task.Git.AutoBranch = cfg.Git.AutoBranch })
	set("git-commit", func() { task.Git.AutoCommit = cfg.Git.AutoCommit })
	set("git-commit-message", func() { task.Git.CommitMessage = cfg.Git.CommitMessage })
	set("max-files", func() {
		v, _ := cmd.Flags().GetInt("max-files")
		task.MaxFiles = v
	})
	set("working-dir", func() {
		v, _ := cmd.Flags().GetString("working-dir")
		task.WorkingDir = v
	})
	set("prompt", func() {
		v, _ := cmd.Flags().GetString("prompt")
		task.Prompt = v
	})
	set("fixup", func() {
		v, _ := cmd.Flags().GetString("fixup")
		task.FixupPrompt = v
	})
	set("verify", func() {
		v, _ := cmd.Flags().GetString("verify")
		task.VerifyCommand = v
	})

	return changed
}
