// Package store persists finished session transcripts so runs can be listed
// and re-read after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/d0rbu/llamastack-austin/internal/history"
	"github.com/d0rbu/llamastack-austin/internal/loop"
)

// Store is a sqlite-backed transcript archive.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Executable     string    `json:"executable"`
	BugDescription string    `json:"bug_description"`
	Status         string    `json:"status"`
	Steps          int       `json:"steps"`
	StartedAt      time.Time `json:"started_at"`
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize transcript store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		executable TEXT NOT NULL,
		bug_description TEXT NOT NULL,
		status TEXT NOT NULL,
		steps_attempted INTEGER NOT NULL,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		step INTEGER NOT NULL,
		command TEXT,
		token INTEGER,
		summary TEXT NOT NULL,
		terminated INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		events JSON,
		PRIMARY KEY (run_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveOutcome writes one finished run and its full step transcript.
func (s *Store) SaveOutcome(out *loop.Outcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, executable, bug_description, status, steps_attempted, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.RunID, out.Executable, out.BugDescription, string(out.Status),
		out.StepsAttempted, out.Error, out.StartedAt, out.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, rec := range out.Steps {
		events, err := json.Marshal(rec.Events)
		if err != nil {
			return fmt.Errorf("marshal events for step %d: %w", rec.Step, err)
		}
		_, err = tx.Exec(
			`INSERT INTO steps (run_id, step, command, token, summary, terminated, duration_ns, events)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			out.RunID, rec.Step, rec.Command, rec.Token, rec.Summary,
			rec.Terminated, int64(rec.Duration), string(events),
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", rec.Step, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT r.run_id, r.executable, r.bug_description, r.status, r.steps_attempted, r.started_at
		 FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.RunID, &rs.Executable, &rs.BugDescription, &rs.Status, &rs.Steps, &rs.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// LoadOutcome reads one run's full transcript back. Returns sql.ErrNoRows
// when the run is unknown.
func (s *Store) LoadOutcome(runID string) (*loop.Outcome, error) {
	out := &loop.Outcome{}
	var status string
	err := s.db.QueryRow(
		`SELECT run_id, executable, bug_description, status, steps_attempted, error, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&out.RunID, &out.Executable, &out.BugDescription, &status,
		&out.StepsAttempted, &out.Error, &out.StartedAt, &out.FinishedAt)
	if err != nil {
		return nil, err
	}
	out.Status = loop.Status(status)

	rows, err := s.db.Query(
		`SELECT step, command, token, summary, terminated, duration_ns, events
		 FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec history.StepRecord
		var durationNS int64
		var events sql.NullString
		if err := rows.Scan(&rec.Step, &rec.Command, &rec.Token, &rec.Summary, &rec.Terminated, &durationNS, &events); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationNS)
		if events.Valid && events.String != "" && events.String != "null" {
			if err := json.Unmarshal([]byte(events.String), &rec.Events); err != nil {
				return nil, fmt.Errorf("unmarshal events for step %d: %w", rec.Step, err)
			}
		}
		out.Steps = append(out.Steps, rec)
	}
	return out, rows.Err()
}
