package repository

import (
	"context"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type AttemptRepository interface {
	// CreateAttempt opens an attempt record at the moment dispatch starts.
	// Returns the persisted attempt with its generated ID so the caller
	// can close it with CompleteAttempt once the dispatch returns.
	CreateAttempt(ctx context.Context, attempt *domain.JobAttempt) (*domain.JobAttempt, error)

	// CompleteAttempt closes an open attempt record with the dispatch outcome.
	// statusCode is nil when the channel reported none. errMsg is nil on success.
	CompleteAttempt(ctx context.Context, id string, statusCode *int, errMsg *string, durationMS int64) error

	// ListByJobID returns all attempts for a job, ordered by started_at ASC.
	ListByJobID(ctx context.Context, jobID string) ([]*domain.JobAttempt, error)
}
