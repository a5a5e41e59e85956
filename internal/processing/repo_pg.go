package processing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studyhub-backend/internal/documents"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, document_id, job_type, status, progress, result, error_message, started_at, completed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var jobType, status string
	var result []byte
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&jobType,
		&status,
		&job.Progress,
		&result,
		&errMsg,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	job.JobType = documents.JobType(jobType)
	job.Status = Status(status)
	if len(result) > 0 && string(result) != "null" {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return Job{}, fmt.Errorf("decode result: %w", err)
		}
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO processing_jobs (id, document_id, job_type, status, progress, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, job.ID, job.DocumentID, string(job.JobType), string(job.Status), job.Progress, job.CreatedAt)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

func (r *PGRepo) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + `
FROM processing_jobs
WHERE document_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Claim is a conditional update; a redelivered message finds the job past
// pending and gets ErrAlreadyClaimed.
func (r *PGRepo) Claim(ctx context.Context, jobID string, startedAt time.Time) (Job, error) {
	query := `
UPDATE processing_jobs
SET status = 'processing', progress = 50, started_at = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + jobColumns
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID, startedAt))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
			return Job{}, getErr
		}
		return Job{}, ErrAlreadyClaimed
	}
	return job, err
}

func (r *PGRepo) Complete(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	const query = `
UPDATE processing_jobs
SET status = 'completed', progress = 100, result = $2, completed_at = $3
WHERE id = $1`
	return r.execOne(ctx, query, jobID, resultJSON, completedAt)
}

func (r *PGRepo) Fail(ctx context.Context, jobID, message string, completedAt time.Time) error {
	const query = `
UPDATE processing_jobs
SET status = 'failed', error_message = $2, completed_at = $3
WHERE id = $1`
	return r.execOne(ctx, query, jobID, message, completedAt)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
