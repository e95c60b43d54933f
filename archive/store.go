// Package archive keeps a SQLite index of completed runs next to the text
// logs, so sessions can be listed per participant without parsing files.
package archive

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

// Run describes one archived run.
type Run struct {
	ID          string
	Participant string
	Version     string
	Seed        uint64
	LogPath     string
	StartedAt   time.Time
	Aborted     bool
	Trials      int
}

// Store provides SQLite-backed persistence for runs and their events.
type Store struct {
	db *sql.DB
}

// New returns a Store bound to an existing database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// RecordRun stores run and its records in one transaction and returns the
// generated run id.
func (s *Store) RecordRun(run Run, records []engine.Record) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("record run: store is nil")
	}
	if strings.TrimSpace(run.Participant) == "" {
		return "", fmt.Errorf("record run: participant is empty")
	}
	run.ID = uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("record run: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(
		`INSERT INTO runs (id, participant, version, seed, log_path, started_at, aborted, trials) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, strings.ToLower(run.Participant), run.Version, int64(run.Seed), run.LogPath,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.Aborted, run.Trials,
	)
	if err != nil {
		return "", fmt.Errorf("record run: insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events (run_id, seq, label, onset_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("record run: prepare events: %w", err)
	}
	defer stmt.Close()
	for i, r := range records {
		if _, err := stmt.Exec(run.ID, i, r.Label, r.Onset.Milliseconds()); err != nil {
			return "", fmt.Errorf("record run: insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return run.ID, nil
}

// Runs lists the runs of a participant, oldest first.
func (s *Store) Runs(participant string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, participant, version, seed, log_path, started_at, aborted, trials FROM runs WHERE participant = ? ORDER BY started_at, rowid`,
		strings.ToLower(participant),
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			seed    int64
			started string
		)
		if err := rows.Scan(&r.ID, &r.Participant, &r.Version, &seed, &r.LogPath, &started, &r.Aborted, &r.Trials); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		r.Seed = uint64(seed)
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("list runs: parse started_at: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: rows: %w", err)
	}
	return runs, nil
}

// Events returns the records of a run in log order.
func (s *Store) Events(runID string) ([]engine.Record, error) {
	rows, err := s.db.Query(`SELECT label, onset_ms FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("events: query: %w", err)
	}
	defer rows.Close()

	var out []engine.Record
	for rows.Next() {
		var (
			label string
			ms    int64
		)
		if err := rows.Scan(&label, &ms); err != nil {
			return nil, fmt.Errorf("events: scan: %w", err)
		}
		out = append(out, engine.Record{Label: label, Onset: time.Duration(ms) * time.Millisecond})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: rows: %w", err)
	}
	return out, nil
}
