package queue

import (
	"context"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type ListFilter struct {
	State             domain.JobState // empty = all states
	EmployeeJourneyID string          // empty = all instances
	Limit             int             // 0 = no limit
}

// JobStore persists scheduled jobs. Implementations must make every state
// transition atomic: Claim and Activate hand a waiting job to exactly one
// caller, and the lease-taking methods succeed only while the job is still
// active under that lease.
type JobStore interface {
	// Insert assigns ID and Seq. It returns domain.ErrDuplicateJob when a
	// waiting or active job already exists for the same instance and action.
	Insert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error)

	// Due lists waiting jobs with NotBefore <= asOf ordered by (NotBefore, Seq)
	// without claiming them.
	Due(ctx context.Context, asOf time.Time, limit int) ([]*domain.ScheduledJob, error)

	// Claim moves up to limit due jobs to active in Due order, increments
	// their attempts and stamps claimedBy, claimedAt and heartbeatAt.
	Claim(ctx context.Context, workerID string, asOf time.Time, limit int) ([]*domain.ScheduledJob, error)

	// Activate claims one specific waiting job regardless of NotBefore.
	// Returns domain.ErrJobNotWaiting if the job is in any other state.
	Activate(ctx context.Context, jobID, workerID string, at time.Time) (*domain.ScheduledJob, error)

	Heartbeat(ctx context.Context, lease domain.Lease, at time.Time) error
	Complete(ctx context.Context, lease domain.Lease, at time.Time) error
	Requeue(ctx context.Context, lease domain.Lease, lastError string, notBefore, at time.Time) error
	Fail(ctx context.Context, lease domain.Lease, lastError string, at time.Time) error

	Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.ScheduledJob, error)
	Counts(ctx context.Context) (map[domain.JobState]int, error)

	// Remove deletes a job that is not active. Active jobs yield
	// domain.ErrInvalidOperation.
	Remove(ctx context.Context, jobID string) error
	// Clear deletes every job that is not active and reports how many went.
	Clear(ctx context.Context) (int, error)

	// Stale lists active jobs whose heartbeat is older than cutoff.
	Stale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledJob, error)
}
