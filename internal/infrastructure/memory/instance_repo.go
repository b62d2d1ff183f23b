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

type InstanceRepository struct {
	mu        sync.RWMutex
	instances map[string]*domain.EmployeeJourney
}

func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{instances: make(map[string]*domain.EmployeeJourney)}
}

func cloneInstance(j *domain.EmployeeJourney) *domain.EmployeeJourney {
	c := j.Clone()
	return &c
}

func (r *InstanceRepository) Save(_ context.Context, j *domain.EmployeeJourney) (*domain.EmployeeJourney, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneInstance(j)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.instances[stored.ID] = stored
	return cloneInstance(stored), nil
}

func (r *InstanceRepository) FindByID(_ context.Context, id string) (*domain.EmployeeJourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.instances[id]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return cloneInstance(j), nil
}

func (r *InstanceRepository) Update(_ context.Context, j *domain.EmployeeJourney) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.instances[j.ID]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	stored := cloneInstance(j)
	stored.CreatedAt = prev.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.instances[j.ID] = stored
	return nil
}

func (r *InstanceRepository) FindByEmployeeID(_ context.Context, employeeID string) ([]*domain.EmployeeJourney, error) {
	return r.filter(func(j *domain.EmployeeJourney) bool { return j.EmployeeID == employeeID }), nil
}

func (r *InstanceRepository) FindPendingActions(_ context.Context) ([]*domain.EmployeeJourney, error) {
	return r.filter(func(j *domain.EmployeeJourney) bool { return !j.IsTerminal() }), nil
}

func (r *InstanceRepository) filter(keep func(*domain.EmployeeJourney) bool) []*domain.EmployeeJourney {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.EmployeeJourney
	for _, j := range r.instances {
		if keep(j) {
			out = append(out, cloneInstance(j))
		}
	}
	slices.SortFunc(out, func(a, b *domain.EmployeeJourney) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}
