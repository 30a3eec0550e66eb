package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/fileloop/internal/claude"
	"github.com/harrison/fileloop/internal/config"
	"github.com/harrison/fileloop/internal/executor"
	"github.com/harrison/fileloop/internal/gitx"
	"github.com/harrison/fileloop/internal/history"
	"github.com/harrison/fileloop/internal/logger"
	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/store"
)

// loadBaseConfig loads config from --config or the default location, without
// flag overrides.
func loadBaseConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadConfigForCommand loads config from --config or the default location
// and merges the flags the user explicitly set.
func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	cfg.MergeWithFlags(flagOverrides(cmd))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// flagOverrides builds pointers only for the flags that were explicitly set,
// so config file values survive for everything else.
func flagOverrides(cmd *cobra.Command) config.FlagOverrides {
	var f config.FlagOverrides

	if cmd.Flags().Changed("concurrency") {
		v, _ := cmd.Flags().GetInt("concurrency")
		f.Concurrency = &v
	}
	if cmd.Flags().Changed("max-retries") {
		v, _ := cmd.Flags().GetInt("max-retries")
		f.MaxRetries = &v
	}
	if cmd.Flags().Changed("timeout") {
		s, _ := cmd.Flags().GetString("timeout")
		if d, err := time.ParseDuration(s); err == nil {
			f.Timeout = &d
		}
	}
	if cmd.Flags().Changed("allowlist") {
		v, _ := cmd.Flags().GetString("allowlist")
		f.Allowlist = &v
	}
	if cmd.Flags().Changed("tasks-dir") {
		v, _ := cmd.Flags().GetString("tasks-dir")
		f.TasksDir = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		f.LogLevel = &v
	}
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		f.LogDir = &v
	}
	if cmd.Flags().Changed("git") {
		v, _ := cmd.Flags().GetBool("git")
		f.GitEnabled = &v
	}
	if cmd.Flags().Changed("git-branch") {
		v, _ := cmd.Flags().GetBool("git-branch")
		f.GitBranch = &v
	}
	if cmd.Flags().Changed("git-commit") {
		v, _ := cmd.Flags().GetBool("git-commit")
		f.GitCommit = &v
	}
	if cmd.Flags().Changed("git-commit-message") {
		v, _ := cmd.Flags().GetString("git-commit-message")
		f.CommitMessage = &v
	}
	return f
}

// addExecutionFlags registers the flags shared by run and resume.
func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .fileloop/config.yaml)")
	cmd.Flags().Int("concurrency", 5, "Number of parallel workers")
	cmd.Flags().Int("max-retries", 3, "Fixup attempts per file before it fails")
	cmd.Flags().Int("max-files", 0, "Maximum files processed this run (0 = all)")
	cmd.Flags().String("timeout", "", "Maximum duration of one external operation (e.g. 10m, 1h)")
	cmd.Flags().String("allowlist", "{file_stem}*", "Allowlist pattern template for authorized changes")
	cmd.Flags().String("tasks-dir", "", "Directory for task state records")
	cmd.Flags().String("working-dir", "", "Directory agent and verify commands run in")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("log-level", "", "Log verbosity (trace, debug, info, warn, error)")
	cmd.Flags().Bool("git", false, "Enable git change tracking and authorization checks")
	cmd.Flags().Bool("git-branch", false, "Create a dedicated branch before processing (implies --git)")
	cmd.Flags().Bool("git-commit", false, "Commit each file's changes when it completes (implies --git)")
	cmd.Flags().String("git-commit-message", "", "Commit message template ({file}, {file_stem}, {task_id})")
}

// executeTask wires up the loggers, executor, and collaborators for a task
// and drives it to the end. It returns an error when files failed or the run
// was interrupted, so the process exits non-zero.
func executeTask(cmd *cobra.Command, cfg *config.Config, st *store.Store, task *models.Task) error {
	consoleLog := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMulti(consoleLog, fileLog)

	var recorder executor.AttemptRecorder
	if cfg.HistoryDB != "" {
		hist, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warnf("attempt history disabled: %v", err)
		} else {
			defer hist.Close()
			recorder = hist
		}
	}

	invoker := claude.NewInvoker(task.WorkingDir)
	invoker.Timeout = cfg.Timeout

	var tracker executor.ChangeTracker
	if task.Git.Enabled {
		tracker = gitx.NewTracker(task.WorkingDir)
	}

	orch := &executor.Orchestrator{
		Store:    st,
		Exec:     invoker,
		Tracker:  tracker,
		Recorder: recorder,
		Failures: executor.NewFailureLog(st.Dir()),
		Logger:   log,
	}

	report, err := orch.Run(cmd.Context(), task)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	if report.Interrupted {
		return fmt.Errorf("run interrupted; resume with: fileloop resume %s", task.ID)
	}
	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", report.Summary.Failed)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nAll %d file(s) completed.\n", report.Summary.Total)
	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", fileLog.RunFile())
	return nil
}

// prepareGitState captures the repository baseline for a fresh task and
// optionally creates its branch. No-op when git integration is off.
func prepareGitState(ctx context.Context, task *models.Task, st *store.Store) error {
	if !task.Git.Enabled {
		return nil
	}

	tracker := gitx.NewTracker(task.WorkingDir)
	state, err := tracker.Capture(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture git state: %w", err)
	}
	task.GitState = state

	if task.Git.AutoBranch && tracker.IsRepo(ctx) {
		branch, err := tracker.CreateTaskBranch(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("failed to create task branch: %w", err)
		}
		task.GitState.TaskBranch = branch
	}

	return st.SaveTask(task)
}
