package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound is returned when no journal row has the job id.
	ErrJobNotFound = errors.New("database: job not found")

	// ErrJobExists is returned when a job id is journaled twice.
	ErrJobExists = errors.New("database: job already recorded")
)

// Job statuses as stored in the journal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JobRecord is one journaled tileset generation job.
type JobRecord struct {
	JobID            string
	LowerDescription string
	UpperDescription string
	TransitionSize   float64
	TileSize         int
	LowerBaseTileID  string
	UpperBaseTileID  string

	// Options is the generation options as JSON.
	Options string

	// ChainID groups the jobs of one chain; ChainStep is the job's position.
	ChainID   string
	ChainStep int

	Status    string
	Error     string
	LocalPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const jobColumns = `job_id, lower_description, upper_description, transition_size, tile_size,
	lower_base_tile_id, upper_base_tile_id, options, chain_id, chain_step,
	status, error, local_path, created_at, updated_at`

// CreateJob journals a newly submitted job. Zero timestamps are set to now.
func (d *Database) CreateJob(ctx context.Context, job *JobRecord) error {
	if job.JobID == "" {
		return fmt.Errorf("database: job id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.Options == "" {
		job.Options = "{}"
	}

	_, err := d.db.ExecContext(ctx, d.qb.Build(`
		INSERT INTO tileset_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.JobID, job.LowerDescription, job.UpperDescription, job.TransitionSize, job.TileSize,
		job.LowerBaseTileID, job.UpperBaseTileID, job.Options, job.ChainID, job.ChainStep,
		job.Status, job.Error, job.LocalPath, job.CreatedAt.UnixMilli(), job.UpdatedAt.UnixMilli())
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrJobExists, job.JobID)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// UpdateJob records the job's current status, error, result ids and local
// path.
func (d *Database) UpdateJob(ctx context.Context, job *JobRecord) error {
	job.UpdatedAt = time.Now().UTC()

	result, err := d.db.ExecContext(ctx, d.qb.Build(`
		UPDATE tileset_jobs
		SET status = ?, error = ?, lower_base_tile_id = ?, upper_base_tile_id = ?,
			local_path = ?, updated_at = ?
		WHERE job_id = ?`),
		job.Status, job.Error, job.LowerBaseTileID, job.UpperBaseTileID,
		job.LocalPath, job.UpdatedAt.UnixMilli(), job.JobID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.JobID)
	}
	return nil
}

// GetJob returns the journal row for jobID.
func (d *Database) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	row := d.db.QueryRowContext(ctx, d.qb.Build(`
		SELECT `+jobColumns+`
		FROM tileset_jobs
		WHERE job_id = ?`), jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns journaled jobs oldest first. An empty status lists all.
func (d *Database) ListJobs(ctx context.Context, status string) ([]*JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM tileset_jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, chain_step`

	rows, err := d.db.QueryContext(ctx, d.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ChainJobs returns the jobs of one chain in step order.
func (d *Database) ChainJobs(ctx context.Context, chainID string) ([]*JobRecord, error) {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`
		SELECT `+jobColumns+`
		FROM tileset_jobs
		WHERE chain_id = ?
		ORDER BY chain_step`), chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain: %w", err)
	}
	defer rows.Close()

	var jobs []*JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var job JobRecord
	var created, updated int64
	err := s.Scan(
		&job.JobID, &job.LowerDescription, &job.UpperDescription, &job.TransitionSize, &job.TileSize,
		&job.LowerBaseTileID, &job.UpperBaseTileID, &job.Options, &job.ChainID, &job.ChainStep,
		&job.Status, &job.Error, &job.LocalPath, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = time.UnixMilli(created).UTC()
	job.UpdatedAt = time.UnixMilli(updated).UTC()
	return &job, nil
}
