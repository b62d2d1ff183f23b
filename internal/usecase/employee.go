package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

type EmployeeUsecase struct {
	repo repository.EmployeeRepository
}

func NewEmployeeUsecase(repo repository.EmployeeRepository) *EmployeeUsecase {
	return &EmployeeUsecase{repo: repo}
}

type CreateEmployeeInput struct {
	Name       string
	Email      string
	Phone      string
	Department string
	Position   string
	HireDate   time.Time
}

func (u *EmployeeUsecase) Create(ctx context.Context, input CreateEmployeeInput) (*domain.Employee, error) {
	e, err := domain.NewEmployee(input.Name, input.Email, input.Phone, input.Department, input.Position, input.HireDate)
	if err != nil {
		return nil, err
	}

	created, err := u.repo.Save(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("save employee: %w", err)
	}
	return created, nil
}

func (u *EmployeeUsecase) Get(ctx context.Context, id string) (*domain.Employee, error) {
	e, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (u *EmployeeUsecase) List(ctx context.Context, limit int) ([]*domain.Employee, error) {
	es, err := u.repo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return es, nil
}
