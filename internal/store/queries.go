package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Run operations

// StartRun records the beginning of a watch run.
func (s *Store) StartRun(run *Run) error {
	query := `
		INSERT INTO runs (id, dir, ext, term, interval_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.ID,
		run.Dir,
		run.Ext,
		run.Term,
		run.Interval.Milliseconds(),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, classify(err))
	}

	return nil
}

// FinishRun stores the final counters and stop time of a run.
func (s *Store) FinishRun(id string, stoppedAt time.Time, cycles, failedCycles, matches int) error {
	query := `
		UPDATE runs
		SET stopped_at = ?, cycles = ?, failed_cycles = ?, matches = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query, formatTime(stoppedAt), cycles, failedCycles, matches, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	query := `
		SELECT id, dir, ext, term, interval_ms, started_at, stopped_at, cycles, failed_cycles, matches
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, classify(err))
	}

	return run, nil
}

// ListRuns returns runs, newest first. A limit <= 0 returns all of them.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, dir, ext, term, interval_ms, started_at, stopped_at, cycles, failed_cycles, matches
		FROM runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", classify(err))
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var intervalMS int64
	var startedAt string
	var stoppedAt sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Dir,
		&run.Ext,
		&run.Term,
		&intervalMS,
		&startedAt,
		&stoppedAt,
		&run.Cycles,
		&run.FailedCycles,
		&run.Matches,
	)
	if err != nil {
		return nil, err
	}

	run.Interval = time.Duration(intervalMS) * time.Millisecond

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for %s: %w", run.ID, err)
	}
	if stoppedAt.Valid {
		run.StoppedAt, err = parseTime(stoppedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stopped_at for %s: %w", run.ID, err)
		}
	}

	return &run, nil
}

// Match operations

// InsertMatches batch-inserts matches for a run in a single transaction.
func (s *Store) InsertMatches(runID string, matches []*Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO matches (run_id, file_path, file_name, term, line, text, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to prepare statement: %w", classify(err))
	}
	defer stmt.Close()

	for _, m := range matches {
		_, err := stmt.Exec(runID, m.FilePath, m.FileName, m.Term, m.Line, m.Text, formatTime(m.FoundAt))
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert match %s:%d: %w", m.FileName, m.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}

	return nil
}

// ListMatches returns recorded matches, newest first.
func (s *Store) ListMatches(f MatchFilter) ([]*Match, error) {
	var where []string
	var args []any

	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Term != "" {
		where = append(where, "term = ?")
		args = append(args, f.Term)
	}
	if f.File != "" {
		where = append(where, "file_name = ?")
		args = append(args, f.File)
	}

	query := `
		SELECT id, run_id, file_path, file_name, term, line, text, found_at
		FROM matches
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", classify(err))
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var m Match
		var text sql.NullString
		var foundAt string

		if err := rows.Scan(&m.ID, &m.RunID, &m.FilePath, &m.FileName, &m.Term, &m.Line, &text, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		m.Text = text.String

		m.FoundAt, err = parseTime(foundAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse found_at for match %d: %w", m.ID, err)
		}

		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

// CountMatches returns the number of matches recorded for a run.
func (s *Store) CountMatches(runID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM matches WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", classify(err))
	}
	return count, nil
}

// TotalMatches returns the number of matches recorded across all runs.
func (s *Store) TotalMatches() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", classify(err))
	}
	return count, nil
}
