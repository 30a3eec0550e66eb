package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/fileloop/internal/engine"
	"github.com/harrison/fileloop/internal/gitx"
	"github.com/harrison/fileloop/internal/guard"
	"github.com/harrison/fileloop/internal/history"
	"github.com/harrison/fileloop/internal/models"
	"github.com/harrison/fileloop/internal/pattern"
)

// defaultFixupPrompt is used when verification fails and the task configures
// no fixup prompt of its own.
const defaultFixupPrompt = "Fix the issues with the file"

// maxErrorDetail bounds what gets stored in FileState.LastError.
const maxErrorDetail = 2000

// Pool drives up to Concurrency file pipelines at once. Each worker claims a
// file, runs exactly one external step, applies the resulting transition
// through the serialized persist path, and returns the file to the ready
// queue until it goes terminal.
//
// The single-claim invariant holds because a file path is in the queue at
// most once: it enters at startup, is removed by the claiming worker, and is
// re-enqueued only by that same worker after its transition is persisted.
type Pool struct {
	task     *models.Task
	saver    Saver
	exec     Executor
	tracker  ChangeTracker
	recorder AttemptRecorder
	failures *FailureLog
	logger   Logger

	// files indexes FileState by path. Built before any worker runs: a task
	// fresh from json.Unmarshal has no index yet, and workers must not build
	// one concurrently.
	files map[string]*models.FileState

	// mu serializes all task mutation and the persist that follows it, so
	// workers never observe or write a half-applied transition.
	mu        sync.Mutex
	queue     chan string
	remaining int
	cancel    context.CancelFunc

	fatalOnce sync.Once
	fatal     error
}

// PoolOptions carries the optional collaborators.
type PoolOptions struct {
	Tracker  ChangeTracker   // nil disables change checks and auto-commit
	Recorder AttemptRecorder // nil disables attempt history
	Failures *FailureLog     // nil disables the failure log
	Logger   Logger          // nil disables logging
}

// NewPool creates a pool over the task's non-terminal files.
func NewPool(task *models.Task, saver Saver, exec Executor, opts PoolOptions) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	files := make(map[string]*models.FileState, len(task.Files))
	for _, fs := range task.Files {
		files[fs.Path] = fs
	}
	return &Pool{
		task:     task,
		saver:    saver,
		exec:     exec,
		tracker:  opts.Tracker,
		recorder: opts.Recorder,
		failures: opts.Failures,
		logger:   logger,
		files:    files,
	}
}

// Run processes files until every claimed file is terminal, the context is
// canceled, or a persistence failure aborts the run. On cancellation it
// stops claiming new files, lets in-flight steps finish, persists their
// results, and returns.
func (p *Pool) Run(ctx context.Context) error {
	ready := p.readyFiles()
	if len(ready) == 0 {
		p.logger.Infof("task %s: no files to process", p.task.ID)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cancel = cancel

	p.queue = make(chan string, len(ready))
	p.remaining = len(ready)
	for _, path := range ready {
		p.queue <- path
	}

	workers := p.task.Concurrency
	p.logger.Infof("task %s: processing %d file(s) with %d worker(s)", p.task.ID, len(ready), workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(runCtx, id)
		}(i)
	}
	wg.Wait()

	return p.fatal
}

// readyFiles lists claimable files in insertion order, capped by MaxFiles.
func (p *Pool) readyFiles() []string {
	var ready []string
	for _, fs := range p.task.Files {
		if fs.Status.Terminal() {
			continue
		}
		if p.task.MaxFiles > 0 && len(ready) >= p.task.MaxFiles {
			break
		}
		ready = append(ready, fs.Path)
	}
	return ready
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case path, ok := <-p.queue:
			if !ok {
				return
			}
			p.drive(ctx, id, path)
		}
	}
}

// drive runs one pipeline step for a claimed file: claim, external
// operation, transition, persist, and hand-back.
func (p *Pool) drive(ctx context.Context, workerID int, path string) {
	fs := p.files[path]

	var inflight models.FileStatus
	var claimErr error
	if err := p.apply(func() {
		inflight, claimErr = engine.Claim(fs.Status)
		if claimErr == nil {
			fs.Status = inflight
		}
	}); err != nil {
		p.finish(path)
		return
	}
	if claimErr != nil {
		p.logger.Errorf("worker %d: cannot claim %s: %v", workerID, path, claimErr)
		p.finish(path)
		return
	}

	// A verification failure moves straight into FixupInProgress, so one
	// claim can span several consecutive in-flight statuses. The loop runs
	// steps until the file reaches a claimable or terminal status. Shutdown
	// stops the pipeline between steps: the in-flight status is already
	// persisted and resume rewinds it.
	for fs.Status.InFlight() {
		if ctx.Err() != nil {
			p.finish(path)
			return
		}
		if !p.step(ctx, workerID, path, fs) {
			p.finish(path)
			return
		}
	}

	if fs.Status.Terminal() {
		p.finish(path)
		return
	}
	if ctx.Err() != nil {
		// Shutting down: persisted state is current, do not reschedule.
		p.finish(path)
		return
	}
	p.queue <- path
}

// step runs one external operation and applies its transition. It returns
// false when the file cannot make further progress in this run.
func (p *Pool) step(ctx context.Context, workerID int, path string, fs *models.FileState) bool {
	inflight := fs.Status
	step, err := engine.StepFor(inflight)
	if err != nil {
		p.logger.Errorf("worker %d: %s: %v", workerID, path, err)
		return false
	}
	p.logger.Infof("worker %d: %s %s (attempt %d/%d)", workerID, step, path, fs.RetryCount, p.task.MaxRetries)

	// The external operation is never aborted mid-flight: shutdown only
	// stops new claims, so the step runs on a context that survives cancel.
	opCtx := context.WithoutCancel(ctx)
	start := time.Now()
	out, opErr := p.runStep(opCtx, step, fs)
	duration := time.Since(start)

	outcome := outcomeOf(out, opErr)
	decision, err := engine.Next(inflight, fs.RetryCount, p.task.MaxRetries, outcome, p.task.HasVerify())
	if err != nil {
		p.logger.Errorf("worker %d: %s: %v", workerID, path, err)
		return false
	}

	var violation string
	if decision.NeedsGuard {
		if res, checked := p.checkAuthorization(opCtx, path); checked && !res.OK() {
			decision = engine.Decision{Next: models.StatusFailed}
			violation = res.Violation()
			p.logger.Warnf("worker %d: %s: %s", workerID, path,
				(&AuthorizationViolation{File: path, Unauthorized: res.Unauthorized}).Error())
		}
	}

	p.recordAttempt(opCtx, fs, step, outcome, out, opErr, duration)

	if err := p.apply(func() {
		if decision.ConsumeRetry {
			fs.RetryCount++
		}
		fs.Status = decision.Next
		switch {
		case violation != "":
			fs.LastError = violation
		case opErr != nil:
			fs.LastError = truncate(NewExecutorError(path, step.String(), opErr).Error())
		case step == engine.StepVerify && outcome == engine.OutcomeFailure:
			if decision.Next == models.StatusFailed {
				fs.LastError = truncate((&VerificationFailure{
					File:     path,
					Command:  pattern.Expand(p.task.VerifyCommand, fs.Path),
					ExitCode: out.ExitCode,
					Output:   out.Detail(),
				}).Error())
			} else {
				// Keep the raw failing output: the fixup prompt embeds it,
				// and it must survive a crash between verify and fixup.
				fs.LastError = truncate(out.Detail())
			}
		}
		if step != engine.StepVerify && opErr == nil && out.Result != nil {
			fs.Result = out.Result
			fs.Raw = out.ResultRaw
		}
	}); err != nil {
		return false
	}

	p.logStep(workerID, path, fs, step, outcome, out, violation)

	if fs.Status == models.StatusCompleted {
		p.autoCommit(opCtx, workerID, path)
	}
	return true
}

// apply is the single serialized mutate-and-persist path. A failed persist
// is fatal to the run: the transition is still visible in memory, but no
// further work is claimed.
func (p *Pool) apply(mutate func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	mutate()
	if err := p.saver.SaveTask(p.task); err != nil {
		p.abort(err)
		return err
	}
	return nil
}

func (p *Pool) abort(err error) {
	p.fatalOnce.Do(func() {
		p.fatal = err
		p.logger.Errorf("aborting run: %v", err)
		if p.cancel != nil {
			p.cancel()
		}
	})
}

func (p *Pool) finish(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.remaining--
	if p.remaining == 0 {
		close(p.queue)
	}
}

func (p *Pool) runStep(ctx context.Context, step engine.Step, fs *models.FileState) (StepOutput, error) {
	allowlist := pattern.Expand(p.task.AllowlistPattern, fs.Path)

	switch step {
	case engine.StepPrompt:
		return p.exec.Prompt(ctx, PromptRequest{
			Base:      p.task.Prompt,
			File:      fs.Path,
			Metadata:  fs.Metadata,
			Allowlist: allowlist,
		})

	case engine.StepFixup:
		base := p.task.FixupPrompt
		if base == "" {
			base = defaultFixupPrompt
		}
		errContext := fs.LastError
		if errContext == "" {
			errContext = "verification failed"
		}
		p.failures.Append(fs.Path, fmt.Sprintf("FIXUP STARTED (attempt %d/%d)", fs.RetryCount, p.task.MaxRetries))
		return p.exec.Prompt(ctx, PromptRequest{
			Base:         base,
			File:         fs.Path,
			Metadata:     fs.Metadata,
			Allowlist:    allowlist,
			ErrorContext: errContext,
		})

	default:
		return p.exec.Verify(ctx, pattern.Expand(p.task.VerifyCommand, fs.Path))
	}
}

// checkAuthorization asks the tracker what changed and classifies it against
// the global allowlist and the pre-run baseline. checked is false when git
// features are off or the tracker could not report; completion then proceeds
// unchecked rather than failing the file on a tracker hiccup.
func (p *Pool) checkAuthorization(ctx context.Context, path string) (guard.Result, bool) {
	if !p.task.Git.Enabled || p.tracker == nil {
		return guard.Result{}, false
	}

	modified, err := p.tracker.DirtyFiles(ctx)
	if err != nil {
		p.logger.Warnf("change check for %s failed: %v", path, err)
		return guard.Result{}, false
	}

	patterns := p.task.GitState.GlobalAllowlist
	if len(patterns) == 0 {
		patterns = []string{pattern.Expand(p.task.AllowlistPattern, path)}
	}
	return guard.Check(patterns, modified, p.task.GitState.Baseline), true
}

func (p *Pool) autoCommit(ctx context.Context, workerID int, path string) {
	if !p.task.Git.AutoCommit || p.tracker == nil {
		return
	}

	message := gitx.CommitMessage(p.task.Git.CommitMessage, path, p.task.ID)
	hash, err := p.tracker.CommitFile(ctx, path, message)
	switch {
	case err != nil:
		p.logger.Warnf("worker %d: auto-commit of %s failed: %v", workerID, path, err)
	case hash == "":
		p.logger.Debugf("worker %d: %s: nothing to commit", workerID, path)
	default:
		p.logger.Infof("worker %d: committed %s as %s", workerID, path, hash)
	}
}

func (p *Pool) recordAttempt(ctx context.Context, fs *models.FileState, step engine.Step,
	outcome engine.Outcome, out StepOutput, opErr error, duration time.Duration) {
	if p.recorder == nil {
		return
	}

	detail := out.Detail()
	if opErr != nil {
		detail = opErr.Error()
	}
	err := p.recorder.RecordAttempt(ctx, history.Attempt{
		TaskID:   p.task.ID,
		FilePath: fs.Path,
		Step:     step.String(),
		Attempt:  fs.RetryCount,
		Success:  outcome == engine.OutcomeSuccess,
		Detail:   truncate(detail),
		Duration: duration,
	})
	if err != nil {
		p.logger.Warnf("failed to record %s attempt for %s: %v", step, fs.Path, err)
	}
}

func (p *Pool) logStep(workerID int, path string, fs *models.FileState,
	step engine.Step, outcome engine.Outcome, out StepOutput, violation string) {
	switch {
	case violation != "":
		p.failures.Append(path, "AUTHORIZATION VIOLATION\n"+violation)
		p.logger.Errorf("worker %d: %s failed: %s", workerID, path, violation)
	case fs.Status == models.StatusFailed:
		p.failures.Append(path, "FINAL STATUS: FAILED\n"+fs.LastError)
		p.logger.Errorf("worker %d: %s failed after %s: %s", workerID, path, step, fs.LastError)
	case step == engine.StepVerify && outcome == engine.OutcomeFailure:
		p.failures.Append(path, fmt.Sprintf("VERIFICATION FAILED (attempt %d/%d)\nExit code: %d\n\nOutput:\n%s",
			fs.RetryCount, p.task.MaxRetries, out.ExitCode, out.Detail()))
		p.logger.Warnf("worker %d: verification of %s failed (attempt %d/%d)", workerID, path, fs.RetryCount, p.task.MaxRetries)
	default:
		p.logger.Infof("worker %d: %s -> %s", workerID, path, fs.Status)
	}
}

func outcomeOf(out StepOutput, opErr error) engine.Outcome {
	switch {
	case opErr != nil:
		return engine.OutcomeError
	case out.Failed():
		return engine.OutcomeFailure
	default:
		return engine.OutcomeSuccess
	}
}

func truncate(s string) string {
	if len(s) > maxErrorDetail {
		return s[:maxErrorDetail]
	}
	return s
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)  {}
func (nopLogger) Infof(string, ...any)   {}
func (nopLogger) Warnf(string, ...any)   {}
func (nopLogger) Errorf(string, ...any)  {}
func (nopLogger) Summary(*models.Report) {}
