package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunTracker records pipeline runs and their file jobs.
type RunTracker interface {
	CreatePipelineRun(ctx context.Context, run *PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *PipelineRun) error
	GetPipelineRun(ctx context.Context, id int64) (*PipelineRun, error)
	GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error)
	CreateFileJob(ctx context.Context, job *FileJob) error
	UpdateFileJob(ctx context.Context, job *FileJob) error
	GetFailedFileJobs(ctx context.Context, pipelineName string, maxRetries int) ([]*FileJob, error)
	IncrementProcessedFiles(ctx context.Context, runID int64) error
	AddRowCount(ctx context.Context, runID int64, count int) error
	ListRuns(ctx context.Context, since time.Time) ([]*PipelineRun, error)
}

const trackerSchema = `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id              BIGSERIAL PRIMARY KEY,
		pipeline_name   TEXT NOT NULL,
		date            DATE NOT NULL,
		status          TEXT NOT NULL,
		total_files     INTEGER NOT NULL DEFAULT 0,
		processed_files INTEGER NOT NULL DEFAULT 0,
		total_rows      INTEGER NOT NULL DEFAULT 0,
		started_at      TIMESTAMPTZ NOT NULL,
		completed_at    TIMESTAMPTZ,
		error_message   TEXT NOT NULL DEFAULT '',
		UNIQUE (pipeline_name, date)
	);
	CREATE TABLE IF NOT EXISTS pipeline_file_jobs (
		id              BIGSERIAL PRIMARY KEY,
		pipeline_run_id BIGINT NOT NULL REFERENCES pipeline_runs (id) ON DELETE CASCADE,
		file_path       TEXT NOT NULL,
		status          TEXT NOT NULL,
		error_message   TEXT NOT NULL DEFAULT '',
		processed_at    TIMESTAMPTZ,
		retry_count     INTEGER NOT NULL DEFAULT 0
	);
`

// OpenDB connects to Postgres through the pgx database/sql driver.
func OpenDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Repository handles database operations for pipeline tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tracking tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, trackerSchema); err != nil {
		return fmt.Errorf("failed to create pipeline schema: %w", err)
	}
	return nil
}

// CreatePipelineRun creates a new pipeline run record
func (r *Repository) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (
			pipeline_name, date, status, total_files,
			processed_files, total_rows, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		run.PipelineName, run.Date, run.Status, run.TotalFiles,
		run.ProcessedFiles, run.TotalRows, run.StartedAt,
	).Scan(&run.ID)
}

// UpdatePipelineRun updates an existing pipeline run
func (r *Repository) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, total_files = $2, completed_at = $3, error_message = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.TotalFiles, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	return err
}

const runColumns = `id, pipeline_name, date, status, total_files,
	processed_files, total_rows, started_at, completed_at, error_message`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*PipelineRun, error) {
	run := &PipelineRun{}
	err := s.Scan(
		&run.ID, &run.PipelineName, &run.Date, &run.Status,
		&run.TotalFiles, &run.ProcessedFiles, &run.TotalRows,
		&run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetPipelineRun retrieves a pipeline run by ID
func (r *Repository) GetPipelineRun(ctx context.Context, id int64) (*PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1`
	return scanRun(r.db.QueryRowContext(ctx, query, id))
}

// GetPipelineRunByDate retrieves a pipeline run for a specific date, or nil when none exists
func (r *Repository) GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE pipeline_name = $1 AND date = $2`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, pipelineName, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// CreateFileJob creates a new file job record
func (r *Repository) CreateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		INSERT INTO pipeline_file_jobs (
			pipeline_run_id, file_path, status, error_message
		) VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		job.PipelineRunID, job.FilePath, job.Status, job.ErrorMessage,
	).Scan(&job.ID)
}

// UpdateFileJob updates an existing file job
func (r *Repository) UpdateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		UPDATE pipeline_file_jobs
		SET status = $1, error_message = $2, processed_at = $3, retry_count = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(
		ctx, query,
		job.Status, job.ErrorMessage, job.ProcessedAt, job.RetryCount, job.ID,
	)
	return err
}

// GetFailedFileJobs retrieves all failed file jobs for retry
func (r *Repository) GetFailedFileJobs(ctx context.Context, pipelineName string, maxRetries int) ([]*FileJob, error) {
	query := `
		SELECT fj.id, fj.pipeline_run_id, fj.file_path, fj.status,
		       fj.error_message, fj.processed_at, fj.retry_count
		FROM pipeline_file_jobs fj
		JOIN pipeline_runs pr ON fj.pipeline_run_id = pr.id
		WHERE pr.pipeline_name = $1
		  AND fj.status = $2
		  AND fj.retry_count < $3
		ORDER BY fj.id
	`

	rows, err := r.db.QueryContext(ctx, query, pipelineName, FileStatusFailed, maxRetries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*FileJob
	for rows.Next() {
		job := &FileJob{}
		err := rows.Scan(
			&job.ID, &job.PipelineRunID, &job.FilePath,
			&job.Status, &job.ErrorMessage, &job.ProcessedAt, &job.RetryCount,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// IncrementProcessedFiles atomically increments the processed file count
func (r *Repository) IncrementProcessedFiles(ctx context.Context, runID int64) error {
	query := `
		UPDATE pipeline_runs
		SET processed_files = processed_files + 1
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, runID)
	return err
}

// AddRowCount atomically adds to the total row count
func (r *Repository) AddRowCount(ctx context.Context, runID int64, count int) error {
	query := `
		UPDATE pipeline_runs
		SET total_rows = total_rows + $1
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, count, runID)
	return err
}

// ListRuns retrieves the runs started at or after since, newest first
func (r *Repository) ListRuns(ctx context.Context, since time.Time) ([]*PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE started_at >= $1 ORDER BY started_at DESC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

var _ RunTracker = (*Repository)(nil)
