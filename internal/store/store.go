// Package store is the persistence layer: durable task state records, the
// append-only task registry, and the resume loader. All on-disk records are
// published atomically (write-temp-then-rename) so a reader never observes a
// partially written file, and the store serializes writes per task so records
// are never interleaved.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/fileloop/internal/filelock"
	"github.com/harrison/fileloop/internal/models"
)

// Store owns a tasks directory: one state-<id>.json per task plus the
// registry. It is the sole writer of on-disk records for a run.
type Store struct {
	dir string

	// mu serializes state writes. Workers funnel every transition through
	// SaveTask, and the atomic publish below must not interleave.
	mu sync.Mutex
}

// Open prepares a store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the tasks directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// StatePath returns the state file location for a task id.
func (s *Store) StatePath(id string) string {
	return filepath.Join(s.dir, "state-"+id+".json")
}

// CreateTask assigns the task an id and timestamps, persists its initial
// all-Pending state, and registers it. The registry entry is written
// synchronously before any file processing begins, so a crash immediately
// after creation still leaves a resumable task.
func (s *Store) CreateTask(t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if err := s.SaveTask(t); err != nil {
		return err
	}

	return s.appendEntry(RegistryEntry{
		TaskID:      t.ID,
		StateFile:   filepath.Base(s.StatePath(t.ID)),
		WorkingDir:  t.WorkingDir,
		Description: t.Description,
		Status:      RegistryStatusRunning,
		CreatedAt:   now,
	})
}

// SaveTask durably writes the task record. Every transition goes through
// here before it is considered complete; a failure is a PersistenceError and
// aborts the run.
func (s *Store) SaveTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.StatePath(t.ID), Err: err}
	}
	if err := filelock.AtomicWrite(s.StatePath(t.ID), data); err != nil {
		return &PersistenceError{Path: s.StatePath(t.ID), Err: err}
	}
	return nil
}

// LoadTask reads a task record verbatim, retry counters and statuses
// included, and validates it.
func (s *Store) LoadTask(id string) (*models.Task, error) {
	path := s.StatePath(id)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResumeInconsistencyError{TaskID: id, Path: path, Err: err}
	}

	var t models.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &ResumeInconsistencyError{TaskID: id, Path: path, Err: err}
	}
	for _, fs := range t.Files {
		if _, err := models.ParseFileStatus(string(fs.Status)); err != nil {
			return nil, &ResumeInconsistencyError{TaskID: id, Path: path, Err: err}
		}
	}
	if err := t.Validate(); err != nil {
		return nil, &ResumeInconsistencyError{TaskID: id, Path: path, Err: err}
	}
	return &t, nil
}
