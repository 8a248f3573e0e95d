package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/dubs/internal/store"
)

// RunRepository handles persistence for pipeline runs
type RunRepository struct {
	db *store.Database
}

// NewRunRepository constructs a RunRepository
func NewRunRepository(db *store.Database) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `run_id, status, message, spec, games, articles, article_days,
	trend_days, combined_days, created_at, started_at, finished_at`

// Create inserts a queued run and returns the stored record
func (r *RunRepository) Create(ctx context.Context, spec string) (*store.Run, error) {
	run := &store.Run{
		RunID:     uuid.NewString(),
		Status:    store.RunQueued,
		Spec:      spec,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO runs (run_id, status, message, spec, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.RunID, run.Status, run.Message, run.Spec, run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// MarkRunning moves a run to running and stamps its start time
func (r *RunRepository) MarkRunning(ctx context.Context, runID string) error {
	return r.exec(ctx, "mark run running", `
		UPDATE runs
		SET status = $2, message = $3, started_at = $4
		WHERE run_id = $1
	`, runID, store.RunRunning, "running", time.Now().UTC())
}

// UpdateMessage records a progress message on a run
func (r *RunRepository) UpdateMessage(ctx context.Context, runID, message string) error {
	return r.exec(ctx, "update run message", `UPDATE runs SET message = $2 WHERE run_id = $1`, runID, message)
}

// Complete marks a run completed with its output counts
func (r *RunRepository) Complete(ctx context.Context, run *store.Run) error {
	return r.exec(ctx, "complete run", `
		UPDATE runs
		SET status = $2, message = $3, games = $4, articles = $5, article_days = $6,
			trend_days = $7, combined_days = $8, finished_at = $9
		WHERE run_id = $1
	`, run.RunID, store.RunCompleted, run.Message, run.Games, run.Articles, run.ArticleDays,
		run.TrendDays, run.CombinedDays, time.Now().UTC())
}

// Fail marks a run failed with the error text
func (r *RunRepository) Fail(ctx context.Context, runID string, runErr error) error {
	msg := "failed"
	if runErr != nil {
		msg = runErr.Error()
	}
	return r.exec(ctx, "fail run", `
		UPDATE runs SET status = $2, message = $3, finished_at = $4 WHERE run_id = $1
	`, runID, store.RunFailed, msg, time.Now().UTC())
}

// ResetStuck fails runs left running by a previous process
func (r *RunRepository) ResetStuck(ctx context.Context) (int64, error) {
	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE runs
		SET status = $1, message = $2, finished_at = $3
		WHERE status = $4 OR status = $5
	`, store.RunFailed, "interrupted by service restart", time.Now().UTC(), store.RunRunning, store.RunQueued)
	if err != nil {
		return 0, fmt.Errorf("reset stuck runs: %w", err)
	}
	return res.RowsAffected()
}

// Get returns a run by id
func (r *RunRepository) Get(ctx context.Context, runID string) (*store.Run, error) {
	row := r.db.DB().QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetActive returns the running run, or nil when idle
func (r *RunRepository) GetActive(ctx context.Context) (*store.Run, error) {
	row := r.db.DB().QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE status = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, store.RunRunning)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active run: %w", err)
	}
	return run, nil
}

// ListRecent returns the most recent runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*store.Run, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func scanRun(row scanner) (*store.Run, error) {
	run := &store.Run{}
	err := row.Scan(
		&run.RunID, &run.Status, &run.Message, &run.Spec, &run.Games, &run.Articles,
		&run.ArticleDays, &run.TrendDays, &run.CombinedDays,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
