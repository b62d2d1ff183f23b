package usecase

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

type TemplateUsecase struct {
	repo repository.TemplateRepository
}

func NewTemplateUsecase(repo repository.TemplateRepository) *TemplateUsecase {
	return &TemplateUsecase{repo: repo}
}

type CreateTemplateInput struct {
	Name        string
	Description string
	Actions     []domain.Action
}

func (u *TemplateUsecase) Create(ctx context.Context, input CreateTemplateInput) (*domain.Template, error) {
	tpl, err := domain.NewTemplate(input.Name, input.Description, input.Actions)
	if err != nil {
		return nil, err
	}

	created, err := u.repo.Save(ctx, tpl)
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return created, nil
}

func (u *TemplateUsecase) Get(ctx context.Context, id string) (*domain.Template, error) {
	tpl, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

func (u *TemplateUsecase) List(ctx context.Context, limit int) ([]*domain.Template, error) {
	tpls, err := u.repo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return tpls, nil
}
