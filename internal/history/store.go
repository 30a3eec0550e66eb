// Package history persists a per-attempt execution record in SQLite. Every
// prompt, verify, and fixup run gets one row, giving a queryable trail of
// what each worker did and how long it took. Recording is best-effort: a
// history failure never affects the run itself.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Attempt is one external-operation execution.
type Attempt struct {
	ID        int64
	TaskID    string
	FilePath  string
	Step      string // prompt, verify, fixup
	Attempt   int    // retry counter at the time the step ran
	Success   bool
	Detail    string // truncated output or error detail
	Duration  time.Duration
	CreatedAt time.Time
}

// StepStat aggregates outcomes per step kind.
type StepStat struct {
	Step      string
	Total     int
	Succeeded int
}

// Store manages the SQLite attempt database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (and if necessary creates) the attempt database at dbPath.
// ":memory:" is supported for tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks instead of
	// failing when another fileloop process holds the database.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure history database: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// maxDetailLen bounds stored output so a chatty verification command cannot
// bloat the database.
const maxDetailLen = 4096

// RecordAttempt inserts one attempt row.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	detail := a.Detail
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen]
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (task_id, file_path, step, attempt, success, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TaskID, a.FilePath, a.Step, a.Attempt, a.Success, detail, a.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the newest attempts, optionally filtered by task.
func (s *Store) RecentAttempts(ctx context.Context, taskID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, task_id, file_path, step, attempt, success, detail, duration_ms, created_at
		FROM attempts`
	args := []any{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var durationMS int64
		if err := rows.Scan(&a.ID, &a.TaskID, &a.FilePath, &a.Step, &a.Attempt,
			&a.Success, &a.Detail, &durationMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Stats aggregates success rates per step kind, optionally filtered by task.
func (s *Store) Stats(ctx context.Context, taskID string) ([]StepStat, error) {
	query := `
		SELECT step, COUNT(*), SUM(success)
		FROM attempts`
	args := []any{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` GROUP BY step ORDER BY step`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []StepStat
	for rows.Next() {
		var st StepStat
		if err := rows.Scan(&st.Step, &st.Total, &st.Succeeded); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
