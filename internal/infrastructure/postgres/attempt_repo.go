package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

const attemptColumns = `id, job_id, attempt_num, worker_id, started_at,
		completed_at, status_code, error, duration_ms`

// AttemptRepository keeps one row per dispatch attempt. Rows go away with
// their job.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// CreateAttempt opens an attempt. A job removed by an operator while its
// lease was held reports domain.ErrJobNotFound.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, a *domain.JobAttempt) (*domain.JobAttempt, error) {
	query := `
		INSERT INTO job_attempts (job_id, attempt_num, worker_id, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, attempt_num) DO UPDATE
		SET worker_id = EXCLUDED.worker_id, started_at = EXCLUDED.started_at
		RETURNING ` + attemptColumns

	row := r.pool.QueryRow(ctx, query, a.JobID, a.AttemptNum, a.WorkerID, a.StartedAt)
	created, err := scanAttempt(row)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("create attempt for job %s: %w", a.JobID, domain.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return created, nil
}

// CompleteAttempt closes an attempt once. Completing it again is a no-op,
// so the first recorded outcome wins.
func (r *AttemptRepository) CompleteAttempt(ctx context.Context, id string, statusCode *int, errMsg *string, durationMS int64) error {
	var found bool
	err := r.pool.QueryRow(ctx, `
		WITH target AS (SELECT id FROM job_attempts WHERE id = $1),
		updated AS (
			UPDATE job_attempts
			SET completed_at = NOW(),
			    status_code  = $2,
			    error        = $3,
			    duration_ms  = GREATEST($4, 0)
			WHERE id = $1 AND completed_at IS NULL
		)
		SELECT EXISTS (SELECT 1 FROM target)`,
		id, statusCode, errMsg, durationMS,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if !found {
		return fmt.Errorf("complete attempt %s: not found", id)
	}
	return nil
}

func (r *AttemptRepository) ListByJobID(ctx context.Context, jobID string) ([]*domain.JobAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM job_attempts
		WHERE job_id = $1
		ORDER BY attempt_num ASC`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return collectAttempts(rows)
}

func collectAttempts(rows pgx.Rows) ([]*domain.JobAttempt, error) {
	defer rows.Close()

	attempts := []*domain.JobAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row rowScanner) (*domain.JobAttempt, error) {
	var a domain.JobAttempt
	err := row.Scan(
		&a.ID, &a.JobID, &a.AttemptNum, &a.WorkerID, &a.StartedAt,
		&a.CompletedAt, &a.StatusCode, &a.Error, &a.DurationMS,
	)
	if err != nil {
		return nil, err
	}
	a.StartedAt = a.StartedAt.UTC()
	if a.CompletedAt != nil {
		t := a.CompletedAt.UTC()
		a.CompletedAt = &t
	}
	return &a, nil
}
