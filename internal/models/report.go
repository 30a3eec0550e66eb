package models

import "time"

// Report is the aggregate outcome of driving one task.
type Report struct {
	TaskID   string
	Duration time.Duration

	// Summary is the status tally at the moment the run stopped.
	Summary Summary

	// Failures lists the files that ended Failed, with their recorded errors.
	Failures []*FileState

	// Interrupted is true when the run stopped on a shutdown signal rather
	// than because every file reached a terminal status.
	Interrupted bool
}

// NewReport builds a Report from the task's current state.
func NewReport(t *Task, duration time.Duration, interrupted bool) *Report {
	r := &Report{
		TaskID:      t.ID,
		Duration:    duration,
		Summary:     t.Summarize(),
		Interrupted: interrupted,
	}
	for _, fs := range t.Files {
		if fs.Status == StatusFailed {
			r.Failures = append(r.Failures, fs)
		}
	}
	return r
}
