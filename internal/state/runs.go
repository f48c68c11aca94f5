package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/sagent/pkg/models"
)

var (
	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRunID is returned when an ID prefix matches more than one run.
	ErrAmbiguousRunID = errors.New("run ID prefix is ambiguous")
)

// SaveRun inserts or replaces a run together with its steps.
func (db *DB) SaveRun(ctx context.Context, r *models.RunRecord) error {
	if r.ID == "" {
		return errors.New("save run: id is required")
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, saga, status, with_rollback, started_at, finished_at, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				saga = excluded.saga,
				status = excluded.status,
				with_rollback = excluded.with_rollback,
				started_at = excluded.started_at,
				finished_at = excluded.finished_at,
				error = excluded.error
		`, r.ID, r.Saga, string(r.Status), r.WithRollback, formatTime(r.StartedAt), nullableTime(r.FinishedAt), r.Error)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM run_steps WHERE run_id = ?", r.ID); err != nil {
			return fmt.Errorf("clear run steps: %w", err)
		}
		for i, s := range r.Steps {
			if err := insertStep(ctx, tx, r.ID, i+1, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendSteps adds steps after the last recorded step of a run. Seq values
// on the given steps are ignored.
func (db *DB) AppendSteps(ctx context.Context, runID string, steps ...models.StepRecord) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
			return fmt.Errorf("check run: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		var last int
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM run_steps WHERE run_id = ?", runID)
		if err := row.Scan(&last); err != nil {
			return fmt.Errorf("get last step: %w", err)
		}
		for i, s := range steps {
			if err := insertStep(ctx, tx, runID, last+i+1, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertStep(ctx context.Context, tx *sql.Tx, runID string, seq int, s models.StepRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, seq, task, phase, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, seq, s.Task, string(s.Phase), string(s.Outcome), s.Detail)
	if err != nil {
		return fmt.Errorf("insert step %d: %w", seq, err)
	}
	return nil
}

// GetRun retrieves a run and its steps. id may be a unique prefix of a run ID.
func (db *DB) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	fullID, err := db.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	row := db.QueryRow(ctx, `
		SELECT id, saga, status, with_rollback, started_at, finished_at, error
		FROM runs WHERE id = ?
	`, fullID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT seq, task, phase, outcome, detail
		FROM run_steps WHERE run_id = ? ORDER BY seq
	`, fullID)
	if err != nil {
		return nil, fmt.Errorf("get run steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.StepRecord
		if err := rows.Scan(&s.Seq, &s.Task, &s.Phase, &s.Outcome, &s.Detail); err != nil {
			return nil, fmt.Errorf("scan run step: %w", err)
		}
		r.Steps = append(r.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run steps: %w", err)
	}

	return r, nil
}

func (db *DB) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	pattern := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(id) + "%"
	rows, err := db.Query(ctx, `SELECT id FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`, id, pattern)
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		if m == id {
			return m, nil
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// ListRuns returns the most recent runs first, without steps. A limit of
// zero or less returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := `
		SELECT id, saga, status, with_rollback, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// PurgeRuns deletes runs started before now minus olderThan, along with
// their steps. Returns the number of runs deleted.
func (db *DB) PurgeRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		// foreign_keys is per connection, so steps are removed explicitly.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM run_steps WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
		`, cutoff); err != nil {
			return fmt.Errorf("purge run steps: %w", err)
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.RunRecord, error) {
	var r models.RunRecord
	var startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&r.ID, &r.Saga, &r.Status, &r.WithRollback, &startedAt, &finishedAt, &r.Error); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
