package repository

import (
	"context"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

// TemplateRepository stores journey templates. Templates are immutable, so
// there is no update.
type TemplateRepository interface {
	Save(ctx context.Context, t *domain.Template) (*domain.Template, error)
	FindByID(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context, limit int) ([]*domain.Template, error)
}
