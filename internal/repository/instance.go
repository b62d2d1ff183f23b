package repository

import (
	"context"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type InstanceRepository interface {
	Save(ctx context.Context, j *domain.EmployeeJourney) (*domain.EmployeeJourney, error)
	FindByID(ctx context.Context, id string) (*domain.EmployeeJourney, error)
	Update(ctx context.Context, j *domain.EmployeeJourney) error
	FindByEmployeeID(ctx context.Context, employeeID string) ([]*domain.EmployeeJourney, error)

	// FindPendingActions returns every pending or in-progress instance, for
	// re-enqueueing their current action on startup.
	FindPendingActions(ctx context.Context) ([]*domain.EmployeeJourney, error)
}
