package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/fileloop/internal/filelock"
)

// Registry summary statuses. A task stays running until every file reaches a
// terminal state; the entry is then refreshed exactly once.
const (
	RegistryStatusRunning   = "running"
	RegistryStatusCompleted = "completed"
	RegistryStatusFailed    = "failed"
)

const registryFile = "task_list.json"

// RegistryEntry is one line of the durable task index. Entries are written
// once at task creation and only their Status is ever refreshed.
type RegistryEntry struct {
	TaskID      string    `json:"task_id"`
	StateFile   string    `json:"state_file"`
	WorkingDir  string    `json:"working_dir"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Incomplete reports whether the task still has work to resume.
func (e RegistryEntry) Incomplete() bool {
	return e.Status != RegistryStatusCompleted && e.Status != RegistryStatusFailed
}

// Registry is the ordered, append-only index of all tasks ever created in a
// tasks directory.
type Registry struct {
	Tasks []RegistryEntry `json:"tasks"`
}

func (s *Store) registryPath() string {
	return filepath.Join(s.dir, registryFile)
}

// LoadRegistry reads the registry, returning an empty one if none exists yet.
func (s *Store) LoadRegistry() (*Registry, error) {
	data, err := os.ReadFile(s.registryPath())
	if errors.Is(err, os.ErrNotExist) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task registry: %w", err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse task registry: %w", err)
	}
	return &reg, nil
}

// Entry returns the registry entry for a task id.
func (r *Registry) Entry(taskID string) (RegistryEntry, bool) {
	for _, e := range r.Tasks {
		if e.TaskID == taskID {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// FirstIncomplete returns the oldest entry that is still resumable.
func (r *Registry) FirstIncomplete() (RegistryEntry, bool) {
	for _, e := range r.Tasks {
		if e.Incomplete() {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// appendEntry adds a new entry under the registry lock. The read-modify-write
// is guarded by flock so concurrent fileloop processes sharing a tasks
// directory cannot drop each other's entries.
func (s *Store) appendEntry(entry RegistryEntry) error {
	return s.updateRegistry(func(reg *Registry) error {
		if _, ok := reg.Entry(entry.TaskID); ok {
			return fmt.Errorf("task %s already registered", entry.TaskID)
		}
		reg.Tasks = append(reg.Tasks, entry)
		return nil
	})
}

// SetTaskStatus refreshes the summary status for a task's registry entry.
func (s *Store) SetTaskStatus(taskID, status string) error {
	return s.updateRegistry(func(reg *Registry) error {
		for i := range reg.Tasks {
			if reg.Tasks[i].TaskID == taskID {
				reg.Tasks[i].Status = status
				return nil
			}
		}
		return fmt.Errorf("task %s not found in registry", taskID)
	})
}

func (s *Store) updateRegistry(mutate func(*Registry) error) error {
	lock := filelock.NewFileLock(s.registryPath() + ".lock")
	if err := lock.Lock(); err != nil {
		return &PersistenceError{Path: s.registryPath(), Err: err}
	}
	defer lock.Unlock()

	reg, err := s.LoadRegistry()
	if err != nil {
		return err
	}
	if err := mutate(reg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.registryPath(), Err: err}
	}
	if err := filelock.AtomicWrite(s.registryPath(), data); err != nil {
		return &PersistenceError{Path: s.registryPath(), Err: err}
	}
	return nil
}
