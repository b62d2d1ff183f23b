// Package memory holds process-local repositories for STORAGE=memory.
// Every method copies values in and out so callers never share state
// with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type TemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
}

func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{templates: make(map[string]*domain.Template)}
}

func cloneTemplate(t *domain.Template) *domain.Template {
	c := *t
	c.Actions = slices.Clone(t.Actions)
	return &c
}

func (r *TemplateRepository) Save(_ context.Context, t *domain.Template) (*domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneTemplate(t)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.templates[stored.ID] = stored
	return cloneTemplate(stored), nil
}

func (r *TemplateRepository) FindByID(_ context.Context, id string) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	return cloneTemplate(t), nil
}

func (r *TemplateRepository) List(_ context.Context, limit int) ([]*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, cloneTemplate(t))
	}
	slices.SortFunc(out, func(a, b *domain.Template) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
