package repository

import (
	"context"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type EmployeeRepository interface {
	// Save returns domain.ErrDuplicateEmployee when the email is taken.
	Save(ctx context.Context, e *domain.Employee) (*domain.Employee, error)
	FindByID(ctx context.Context, id string) (*domain.Employee, error)
	List(ctx context.Context, limit int) ([]*domain.Employee, error)
}
