package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FailureLog appends per-file diagnostic records under <dir>/failures. Each
// file gets its own log so a failed run leaves a self-contained trail next to
// the task state. A nil *FailureLog is valid and discards everything.
type FailureLog struct {
	dir string
	mu  sync.Mutex
}

// NewFailureLog creates a failure log rooted in tasksDir. The failures
// directory is created lazily on first append.
func NewFailureLog(tasksDir string) *FailureLog {
	return &FailureLog{dir: filepath.Join(tasksDir, "failures")}
}

// Append writes one timestamped record for file. Errors are swallowed: the
// failure log must never take a run down with it.
func (fl *FailureLog) Append(file, message string) {
	if fl == nil {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	if err := os.MkdirAll(fl.dir, 0755); err != nil {
		return
	}

	name := filepath.Base(file) + ".log"
	f, err := os.OpenFile(filepath.Join(fl.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "=== %s ===\n%s\n\n", time.Now().Format(time.RFC3339), message)
}
