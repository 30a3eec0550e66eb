package store

import (
	"errors"
	"fmt"

	"github.com/harrison/fileloop/internal/models"
)

// ErrNothingToResume is returned when resume is requested without a task id
// and every registered task has already reached a terminal summary status.
var ErrNothingToResume = errors.New("no incomplete tasks to resume")

// Resume reconstructs a task from the registry and its state record. With an
// empty id it picks the first task whose registry summary is non-terminal.
//
// In-flight statuses found on disk mean the process died before finishing
// that step, so they are rewound to the last claimable status and restarted
// from scratch: PromptInProgress becomes Pending, VerifyInProgress and
// FixupInProgress become AwaitingVerification. Retry counters are kept, so a
// file partway through its fixup budget resumes with the budget it had. The
// rewind is persisted before the task is handed to the orchestrator.
func (s *Store) Resume(id string) (*models.Task, error) {
	reg, err := s.LoadRegistry()
	if err != nil {
		return nil, err
	}

	var entry RegistryEntry
	if id == "" {
		var ok bool
		entry, ok = reg.FirstIncomplete()
		if !ok {
			return nil, ErrNothingToResume
		}
	} else {
		var ok bool
		entry, ok = reg.Entry(id)
		if !ok {
			return nil, fmt.Errorf("task not found in registry: %s", id)
		}
	}

	t, err := s.LoadTask(entry.TaskID)
	if err != nil {
		return nil, err
	}

	if rewindInFlight(t) {
		if err := s.SaveTask(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// rewindInFlight restarts every step that was interrupted mid-flight.
// Reports whether any file changed.
func rewindInFlight(t *models.Task) bool {
	changed := false
	for _, fs := range t.Files {
		switch fs.Status {
		case models.StatusPromptInProgress:
			fs.Status = models.StatusPending
			changed = true
		case models.StatusVerifyInProgress, models.StatusFixupInProgress:
			fs.Status = models.StatusAwaitingVerification
			changed = true
		}
	}
	return changed
}
