package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/pattern"
	"github.com/harrison/fileloop/internal/store"
)

// Orchestrator owns one end-to-end run: shutdown signals, the shared
// allowlist for parallel workers, the pool itself, and the registry record
// once the task reaches a terminal state.
type Orchestrator struct {
	Store    *store.Store
	Exec     Executor
	Tracker  ChangeTracker   // nil when git features are off
	Recorder AttemptRecorder // nil disables attempt history
	Failures *FailureLog
	Logger   Logger
}

// Run drives the task until every file is terminal or the run is stopped.
// SIGINT and SIGTERM trigger a graceful drain: no new files are claimed,
// in-flight steps finish and persist, and the report notes the interrupt.
// The returned error is fatal (persistence failed); the report is still
// populated from whatever state was reached.
func (o *Orchestrator) Run(ctx context.Context, task *models.Task) (*models.Report, error) {
	logger := o.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warnf("received %s, finishing in-flight work", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()

	// With parallel workers the change check cannot attribute a dirty file
	// to the worker that made it, so every in-scope file's pattern is
	// authorized for the whole run. Persisted up front so a resumed run
	// applies the same boundary.
	if task.Git.Enabled {
		for _, fs := range task.Files {
			if !fs.Status.Terminal() {
				task.GitState.AddAllowlistPattern(pattern.Expand(task.AllowlistPattern, fs.Path))
			}
		}
		if err := o.Store.SaveTask(task); err != nil {
			return models.NewReport(task, time.Since(start), false), err
		}
	}

	pool := NewPool(task, o.Store, o.Exec, PoolOptions{
		Tracker:  o.Tracker,
		Recorder: o.Recorder,
		Failures: o.Failures,
		Logger:   logger,
	})
	runErr := pool.Run(ctx)

	interrupted := ctx.Err() != nil && !task.Done()
	report := models.NewReport(task, time.Since(start), interrupted)

	if runErr == nil && task.Done() {
		status := store.RegistryStatusCompleted
		if report.Summary.Failed > 0 {
			status = store.RegistryStatusFailed
		}
		if err := o.Store.SetTaskStatus(task.ID, status); err != nil {
			logger.Warnf("failed to update task registry: %v", err)
		}
	}

	logger.Summary(report)
	return report, runErr
}
