// Package queue holds the action queue: the policy that turns "run this
// action for this instance" into a scheduled job, and the storage port the
// policy runs on.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
)

type Clock func() time.Time

type Config struct {
	MaxAttempts int
	Backoff     Backoff
	// Location is the zone executionTime clock slots are read in.
	Location *time.Location
	Clock    Clock
}

type Scheduler struct {
	store       JobStore
	maxAttempts int
	backoff     Backoff
	loc         *time.Location
	now         Clock
}

func New(store JobStore, cfg Config) *Scheduler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		loc:         cfg.Location,
		now:         cfg.Clock,
	}
}

type EnqueueRequest struct {
	EmployeeJourneyID string
	Action            domain.Action
	// After raises the delay base above now, e.g. for a future start date.
	After time.Time
	// At pins NotBefore and bypasses Delay and ExecutionTime.
	At *time.Time
}

// Resolve computes the NotBefore that Enqueue would give req.
func (s *Scheduler) Resolve(req EnqueueRequest) (time.Time, error) {
	if req.At != nil {
		return dueAt(*req.At), nil
	}
	base := s.now()
	if req.After.After(base) {
		base = req.After
	}
	at, err := req.Action.NextRunAt(base, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve schedule: %w", err)
	}
	return dueAt(at), nil
}

// dueAt aligns a notBefore to whole milliseconds, the resolution every
// JobStore orders and compares it at.
func dueAt(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Enqueue schedules req.Action and returns the job in waiting state.
func (s *Scheduler) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.ScheduledJob, error) {
	notBefore, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job, err := s.store.Insert(ctx, &domain.ScheduledJob{
		EmployeeJourneyID: req.EmployeeJourneyID,
		ActionID:          req.Action.ID,
		Channel:           req.Action.Type,
		NotBefore:         notBefore,
		State:             domain.JobWaiting,
		MaxAttempts:       s.maxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(job.Channel)).Inc()
	return job, nil
}

// DueJobs lists waiting jobs eligible at asOf in (notBefore, enqueue order)
// order. It claims nothing.
func (s *Scheduler) DueJobs(ctx context.Context, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	return s.store.Due(ctx, asOf, limit)
}

// Claim atomically takes up to limit due jobs for workerID.
func (s *Scheduler) Claim(ctx context.Context, workerID string, limit int) ([]*domain.ScheduledJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.store.Claim(ctx, workerID, s.now(), limit)
}

// MarkActive claims one waiting job by id, ignoring its notBefore.
func (s *Scheduler) MarkActive(ctx context.Context, jobID, workerID string) (*domain.ScheduledJob, error) {
	return s.store.Activate(ctx, jobID, workerID, s.now())
}

func (s *Scheduler) Heartbeat(ctx context.Context, lease domain.Lease) error {
	return s.store.Heartbeat(ctx, lease, s.now())
}

func (s *Scheduler) MarkCompleted(ctx context.Context, lease domain.Lease) error {
	return s.store.Complete(ctx, lease, s.now())
}

type RetryDecision struct {
	Terminal bool
	RetryAt  time.Time
}

// MarkFailedForRetry puts job back to waiting with a backed off notBefore,
// or fails it terminally once its attempts are used up.
func (s *Scheduler) MarkFailedForRetry(ctx context.Context, job *domain.ScheduledJob, lastError string) (RetryDecision, error) {
	now := s.now()
	if job.Exhausted() {
		if err := s.store.Fail(ctx, job.Lease(), lastError, now); err != nil {
			return RetryDecision{}, err
		}
		return RetryDecision{Terminal: true}, nil
	}

	retryAt := dueAt(now.Add(s.backoff.Delay(job.Attempts)))
	if err := s.store.Requeue(ctx, job.Lease(), lastError, retryAt, now); err != nil {
		return RetryDecision{}, err
	}
	return RetryDecision{RetryAt: retryAt}, nil
}

func (s *Scheduler) MarkTerminallyFailed(ctx context.Context, lease domain.Lease, lastError string) error {
	return s.store.Fail(ctx, lease, lastError, s.now())
}

func (s *Scheduler) Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	return s.store.Get(ctx, jobID)
}

func (s *Scheduler) List(ctx context.Context, filter ListFilter) ([]*domain.ScheduledJob, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, fmt.Errorf("%w: unknown job state %q", domain.ErrInvalidOperation, filter.State)
	}
	return s.store.List(ctx, filter)
}

// Remove cancels a job that is not mid-dispatch.
func (s *Scheduler) Remove(ctx context.Context, jobID string) error {
	return s.store.Remove(ctx, jobID)
}

// Clear removes every job that is not active.
func (s *Scheduler) Clear(ctx context.Context) (int, error) {
	return s.store.Clear(ctx)
}

// Counts returns the number of jobs per state, with every state present.
func (s *Scheduler) Counts(ctx context.Context) (map[domain.JobState]int, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out := map[domain.JobState]int{
		domain.JobWaiting: 0, domain.JobActive: 0, domain.JobCompleted: 0, domain.JobFailed: 0,
	}
	for state, n := range counts {
		out[state] = n
	}
	return out, nil
}

type StaleReport struct {
	Requeued []*domain.ScheduledJob
	Failed   []*domain.ScheduledJob
}

// RecoverStale returns active jobs whose heartbeat stopped more than
// staleAfter ago to waiting, or fails them when no attempts remain. Jobs
// that finish or get reclaimed concurrently are skipped.
func (s *Scheduler) RecoverStale(ctx context.Context, staleAfter time.Duration, limit int) (StaleReport, error) {
	now := s.now()
	stale, err := s.store.Stale(ctx, now.Add(-staleAfter), limit)
	if err != nil {
		return StaleReport{}, fmt.Errorf("list stale jobs: %w", err)
	}

	var report StaleReport
	for _, job := range stale {
		if job.Exhausted() {
			err = s.store.Fail(ctx, job.Lease(), "worker heartbeat lost, attempts exhausted", now)
		} else {
			err = s.store.Requeue(ctx, job.Lease(), "worker heartbeat lost", dueAt(now), now)
		}
		switch {
		case errors.Is(err, domain.ErrJobNotActive), errors.Is(err, domain.ErrJobNotFound):
			continue
		case err != nil:
			return report, fmt.Errorf("recover job %s: %w", job.ID, err)
		}
		if job.Exhausted() {
			report.Failed = append(report.Failed, job)
		} else {
			report.Requeued = append(report.Requeued, job)
		}
	}
	return report, nil
}
