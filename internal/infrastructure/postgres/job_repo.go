package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, seq, employee_journey_id, action_id, channel, not_before, state,
		attempts, max_attempts, claimed_at, claimed_by, heartbeat_at,
		completed_at, last_error, created_at, updated_at`

// JobStore is the durable queue.JobStore. Row locks with SKIP LOCKED make
// claims exclusive across processes, and every lease transition is a
// compare-and-set on (state, attempts).
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

var _ queue.JobStore = (*JobStore)(nil)

func (s *JobStore) Insert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	query := `
		INSERT INTO scheduled_jobs (
			employee_journey_id, action_id, channel, not_before, state,
			max_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, query,
		job.EmployeeJourneyID,
		job.ActionID,
		job.Channel,
		job.NotBefore,
		job.State,
		job.MaxAttempts,
		job.CreatedAt,
		job.UpdatedAt,
	)

	created, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateJob
		}
		return nil, err
	}
	return created, nil
}

func (s *JobStore) Due(ctx context.Context, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE state = 'waiting' AND not_before <= $1
		ORDER BY not_before ASC, seq ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("due jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *JobStore) Claim(ctx context.Context, workerID string, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	// FOR UPDATE SKIP LOCKED prevents double-execution across workers.
	query := `
		UPDATE scheduled_jobs
		SET    state        = 'active',
		       attempts     = attempts + 1,
		       claimed_at   = $2,
		       claimed_by   = $1,
		       heartbeat_at = $2,
		       updated_at   = $2
		WHERE id IN (
			SELECT id FROM scheduled_jobs
			WHERE  state      = 'waiting'
			  AND  not_before <= $2
			ORDER BY not_before ASC, seq ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := s.pool.Query(ctx, query, workerID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	slices.SortFunc(jobs, func(a, b *domain.ScheduledJob) int {
		if c := a.NotBefore.Compare(b.NotBefore); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return jobs, nil
}

func (s *JobStore) Activate(ctx context.Context, jobID, workerID string, at time.Time) (*domain.ScheduledJob, error) {
	query := `
		UPDATE scheduled_jobs
		SET    state        = 'active',
		       attempts     = attempts + 1,
		       claimed_at   = $3,
		       claimed_by   = $2,
		       heartbeat_at = $3,
		       updated_at   = $3
		WHERE id = $1 AND state = 'waiting'
		RETURNING ` + jobColumns

	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID, workerID, at))
	if errors.Is(err, domain.ErrJobNotFound) {
		if _, getErr := s.Get(ctx, jobID); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrJobNotWaiting
	}
	return job, err
}

// leased runs a transition guarded by the lease and maps a miss to
// ErrJobNotFound or ErrJobNotActive.
func (s *JobStore) leased(ctx context.Context, op string, lease domain.Lease, set string, args ...any) error {
	query := fmt.Sprintf(`
		UPDATE scheduled_jobs
		SET %s
		WHERE id = $1 AND state = 'active' AND attempts = $2`, set)

	tag, err := s.pool.Exec(ctx, query, append([]any{lease.JobID, lease.Attempt}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, lease.JobID); err != nil {
		return err
	}
	return domain.ErrJobNotActive
}

func (s *JobStore) Heartbeat(ctx context.Context, lease domain.Lease, at time.Time) error {
	return s.leased(ctx, "heartbeat", lease, `heartbeat_at = $3`, at)
}

func (s *JobStore) Complete(ctx context.Context, lease domain.Lease, at time.Time) error {
	return s.leased(ctx, "complete job", lease,
		`state = 'completed', completed_at = $3, updated_at = $3`, at)
}

func (s *JobStore) Requeue(ctx context.Context, lease domain.Lease, lastError string, notBefore, at time.Time) error {
	return s.leased(ctx, "requeue job", lease, `
		       state        = 'waiting',
		       not_before   = $4,
		       last_error   = $3,
		       claimed_at   = NULL,
		       claimed_by   = NULL,
		       heartbeat_at = NULL,
		       updated_at   = $5`,
		lastError, notBefore, at)
}

func (s *JobStore) Fail(ctx context.Context, lease domain.Lease, lastError string, at time.Time) error {
	return s.leased(ctx, "fail job", lease,
		`state = 'failed', last_error = $3, completed_at = $4, updated_at = $4`, lastError, at)
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`
	return scanJob(s.pool.QueryRow(ctx, query, jobID))
}

func (s *JobStore) List(ctx context.Context, filter queue.ListFilter) ([]*domain.ScheduledJob, error) {
	var (
		args  []any
		where []string
	)
	if filter.State != "" {
		args = append(args, filter.State)
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.EmployeeJourneyID != "" {
		args = append(args, filter.EmployeeJourneyID)
		where = append(where, fmt.Sprintf("employee_journey_id = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *JobStore) Counts(ctx context.Context) (map[domain.JobState]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM scheduled_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JobState]int)
	for rows.Next() {
		var (
			state domain.JobState
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

func (s *JobStore) Remove(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1 AND state <> 'active'`, jobID)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, jobID); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is mid-dispatch", domain.ErrInvalidOperation, jobID)
}

func (s *JobStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE state <> 'active'`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *JobStore) Stale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE state = 'active' AND heartbeat_at < $1
		ORDER BY heartbeat_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("stale jobs: %w", err)
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*domain.ScheduledJob, error) {
	defer rows.Close()

	jobs := []*domain.ScheduledJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*domain.ScheduledJob, error) {
	var j domain.ScheduledJob
	err := row.Scan(
		&j.ID, &j.Seq, &j.EmployeeJourneyID, &j.ActionID, &j.Channel, &j.NotBefore, &j.State,
		&j.Attempts, &j.MaxAttempts, &j.ClaimedAt, &j.ClaimedBy, &j.HeartbeatAt,
		&j.CompletedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	normalizeJobTimes(&j)
	return &j, nil
}

// normalizeJobTimes reports timestamps in UTC like the in-memory store.
func normalizeJobTimes(j *domain.ScheduledJob) {
	j.NotBefore = j.NotBefore.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	for _, t := range []*time.Time{j.ClaimedAt, j.HeartbeatAt, j.CompletedAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
}
