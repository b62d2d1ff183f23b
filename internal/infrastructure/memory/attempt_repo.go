package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type AttemptRepository struct {
	mu       sync.Mutex
	seq      int
	attempts map[string]*domain.JobAttempt
	byJob    map[string][]string
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{
		attempts: make(map[string]*domain.JobAttempt),
		byJob:    make(map[string][]string),
	}
}

func (r *AttemptRepository) CreateAttempt(_ context.Context, a *domain.JobAttempt) (*domain.JobAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	stored := *a
	stored.ID = fmt.Sprintf("attempt_%d", r.seq)
	r.attempts[stored.ID] = &stored
	r.byJob[stored.JobID] = append(r.byJob[stored.JobID], stored.ID)

	out := stored
	return &out, nil
}

func (r *AttemptRepository) CompleteAttempt(_ context.Context, id string, statusCode *int, errMsg *string, durationMS int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[id]
	if !ok {
		return fmt.Errorf("complete attempt: attempt %s not found", id)
	}
	if a.CompletedAt != nil {
		return nil
	}
	durationMS = max(durationMS, 0)
	now := time.Now().UTC()
	a.CompletedAt = &now
	a.StatusCode = statusCode
	a.Error = errMsg
	a.DurationMS = &durationMS
	return nil
}

func (r *AttemptRepository) ListByJobID(_ context.Context, jobID string) ([]*domain.JobAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byJob[jobID]
	out := make([]*domain.JobAttempt, 0, len(ids))
	for _, id := range ids {
		a := *r.attempts[id]
		out = append(out, &a)
	}
	return out, nil
}
