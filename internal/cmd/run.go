package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/fileloop/internal/config"
	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/parser"
	"github.com/harrison/fileloop/internal/store"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input.json]",
		Short: "Create a task and process its files",
		Long: `Create a task from an input mapping and process every file in it.

The input mapping is a JSON object of {"path": metadata}; metadata may be
any JSON value and is passed to the agent verbatim. Task configuration can
come from flags, from a Markdown task file (--task-file), or from
.fileloop/config.yaml; flags win over the task file, which wins over config.

Every state change is persisted under the tasks directory before processing
continues, so an interrupted run can be picked up with "fileloop resume".

Examples:
  # Prompt and verification from flags
  fileloop run files.json --prompt "Add error context to {file}" \
      --verify "go test ./{file_dir}" --concurrency 4

  # Task definition from a Markdown file
  fileloop run files.json --task-file migrate.md

  # Track changes in git, commit each completed file
  fileloop run files.json --task-file migrate.md --git --git-commit

  # Create the task record without processing
  fileloop run files.json --prompt "..." --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}

	addExecutionFlags(cmd)
	cmd.Flags().String("task-file", "", "Markdown task file (frontmatter + ## Prompt/## Fixup/## Verify)")
	cmd.Flags().String("prompt", "", "Prompt applied to each file")
	cmd.Flags().String("fixup", "", "Fixup prompt used after a failed verification")
	cmd.Flags().String("verify", "", "Verification command run after each prompt")
	cmd.Flags().String("description", "", "Task description shown in listings")
	cmd.Flags().Bool("dry-run", false, "Create and persist the task without processing files")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}

	// Task file settings sit between config and flags.
	var tf *parser.TaskFile
	if path, _ := cmd.Flags().GetString("task-file"); path != "" {
		tf, err = parser.NewTaskFileParser().ParseFile(path)
		if err != nil {
			return fmt.Errorf("failed to load task file: %w", err)
		}
		if tf.Allowlist != "" {
			cfg.Allowlist = tf.Allowlist
		}
		if tf.Concurrency > 0 {
			cfg.Concurrency = tf.Concurrency
		}
		if tf.MaxRetries != nil {
			cfg.MaxRetries = *tf.MaxRetries
		}
		if tf.GitEnabled != nil {
			cfg.Git.Enabled = *tf.GitEnabled
		}
		if tf.GitBranch != nil {
			cfg.Git.AutoBranch = *tf.GitBranch
		}
		if tf.GitCommit != nil {
			cfg.Git.AutoCommit = *tf.GitCommit
		}
		if tf.CommitMessage != "" {
			cfg.Git.CommitMessage = tf.CommitMessage
		}
	}

	cfg.MergeWithFlags(flagOverrides(cmd))
	// Branch or commit automation requires tracking.
	if cfg.Git.AutoBranch || cfg.Git.AutoCommit {
		cfg.Git.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	task, err := buildTask(cmd, cfg, tf)
	if err != nil {
		return err
	}

	// Input mapping files join any listed in the task file.
	if tf != nil {
		for _, path := range tf.Files {
			task.AddFile(path, nil)
		}
	}
	if len(args) == 1 {
		input, err := store.LoadInput(args[0])
		if err != nil {
			return fmt.Errorf("failed to load input mapping: %w", err)
		}
		store.MergeInput(task, input)
	}
	if len(task.Files) == 0 {
		return fmt.Errorf("no files to process: provide an input mapping or a task file with a files list")
	}

	st, err := store.Open(cfg.TasksDir)
	if err != nil {
		return err
	}

	if err := st.CreateTask(task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (%d files)\n", task.ID, len(task.Files))

	if err := prepareGitState(cmd.Context(), task, st); err != nil {
		return err
	}
	if task.GitState.TaskBranch != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Working on branch %s\n", task.GitState.TaskBranch)
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Dry-run: task recorded at %s, not processing.\n", st.StatePath(task.ID))
		fmt.Fprintf(cmd.OutOrStdout(), "Start it with: fileloop resume %s\n", task.ID)
		return nil
	}

	return executeTask(cmd, cfg, st, task)
}

// buildTask assembles the task record from merged configuration.
func buildTask(cmd *cobra.Command, cfg *config.Config, tf *parser.TaskFile) (*models.Task, error) {
	prompt, _ := cmd.Flags().GetString("prompt")
	fixup, _ := cmd.Flags().GetString("fixup")
	verify, _ := cmd.Flags().GetString("verify")
	description, _ := cmd.Flags().GetString("description")
	workingDir, _ := cmd.Flags().GetString("working-dir")
	maxFiles, _ := cmd.Flags().GetInt("max-files")

	if tf != nil {
		if prompt == "" {
			prompt = tf.Prompt
		}
		if fixup == "" {
			fixup = tf.Fixup
		}
		if verify == "" {
			verify = tf.Verify
		}
		if description == "" {
			description = tf.Description
		}
	}
	if prompt == "" {
		return nil, fmt.Errorf("a prompt is required: use --prompt or a task file with a ## Prompt section")
	}

	return &models.Task{
		Description:      description,
		Prompt:           prompt,
		FixupPrompt:      fixup,
		VerifyCommand:    verify,
		AllowlistPattern: cfg.Allowlist,
		MaxRetries:       cfg.MaxRetries,
		Concurrency:      cfg.Concurrency,
		MaxFiles:         maxFiles,
		WorkingDir:       workingDir,
		Git: models.GitSettings{
			Enabled:       cfg.Git.Enabled,
			AutoBranch:    cfg.Git.AutoBranch,
			AutoCommit:    cfg.Git.AutoCommit,
			CommitMessage: cfg.Git.CommitMessage,
		},
	}, nil
}
