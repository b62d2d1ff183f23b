package usecase

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

// QueueUsecase gives operators visibility into scheduled jobs.
type QueueUsecase struct {
	queue    *queue.Scheduler
	attempts repository.AttemptRepository
}

func NewQueueUsecase(q *queue.Scheduler, attempts repository.AttemptRepository) *QueueUsecase {
	return &QueueUsecase{queue: q, attempts: attempts}
}

type ListJobsInput struct {
	State             domain.JobState
	EmployeeJourneyID string
	Limit             int
}

func (u *QueueUsecase) ListJobs(ctx context.Context, input ListJobsInput) ([]*domain.ScheduledJob, error) {
	jobs, err := u.queue.List(ctx, queue.ListFilter{
		State:             input.State,
		EmployeeJourneyID: input.EmployeeJourneyID,
		Limit:             clampLimit(input.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (u *QueueUsecase) GetJob(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	job, err := u.queue.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (u *QueueUsecase) RemoveJob(ctx context.Context, id string) error {
	if err := u.queue.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// ClearJobs removes every job that is not mid-dispatch and returns how many
// were removed.
func (u *QueueUsecase) ClearJobs(ctx context.Context) (int, error) {
	n, err := u.queue.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return n, nil
}

func (u *QueueUsecase) Counts(ctx context.Context) (map[domain.JobState]int, error) {
	counts, err := u.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

func (u *QueueUsecase) Attempts(ctx context.Context, jobID string) ([]*domain.JobAttempt, error) {
	if _, err := u.queue.Get(ctx, jobID); err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	attempts, err := u.attempts.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
