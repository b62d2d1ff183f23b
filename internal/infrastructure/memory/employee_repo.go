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

type EmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]*domain.Employee
	byEmail   map[string]string
}

func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{
		employees: make(map[string]*domain.Employee),
		byEmail:   make(map[string]string),
	}
}

func (r *EmployeeRepository) Save(_ context.Context, e *domain.Employee) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[e.Email]; taken {
		return nil, domain.ErrDuplicateEmployee
	}
	stored := *e
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.employees[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID

	out := stored
	return &out, nil
}

func (r *EmployeeRepository) FindByID(_ context.Context, id string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.employees[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	out := *e
	return &out, nil
}

func (r *EmployeeRepository) List(_ context.Context, limit int) ([]*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Employee, 0, len(r.employees))
	for _, e := range r.employees {
		c := *e
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.Employee) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
