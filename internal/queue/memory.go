package queue

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type liveKey struct {
	instanceID string
	actionID   string
}

// MemoryStore is a JobStore held in process memory. A single mutex
// serialises every transition, which is what makes claims exclusive.
// Jobs are lost when the process exits.
type MemoryStore struct {
	mu   sync.Mutex
	seq  int64
	jobs map[string]*domain.ScheduledJob
	live map[liveKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*domain.ScheduledJob),
		live: make(map[liveKey]string),
	}
}

func keyOf(j *domain.ScheduledJob) liveKey {
	return liveKey{instanceID: j.EmployeeJourneyID, actionID: j.ActionID}
}

func byDueOrder(a, b *domain.ScheduledJob) int {
	if c := a.NotBefore.Compare(b.NotBefore); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

func (m *MemoryStore) Insert(_ context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(job)
	if _, ok := m.live[key]; ok {
		return nil, domain.ErrDuplicateJob
	}
	m.seq++
	stored := job.Clone()
	stored.Seq = m.seq
	stored.ID = fmt.Sprintf("job_%d", m.seq)
	m.jobs[stored.ID] = stored
	m.live[key] = stored.ID
	return stored.Clone(), nil
}

// due returns waiting jobs eligible at asOf in due order. Callers hold mu.
func (m *MemoryStore) due(asOf time.Time, limit int) []*domain.ScheduledJob {
	var out []*domain.ScheduledJob
	for _, j := range m.jobs {
		if j.State == domain.JobWaiting && !j.NotBefore.After(asOf) {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, byDueOrder)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MemoryStore) Due(_ context.Context, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.due(asOf, limit)), nil
}

func (m *MemoryStore) Claim(_ context.Context, workerID string, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := m.due(asOf, limit)
	for _, j := range due {
		activate(j, workerID, asOf)
	}
	return cloneAll(due), nil
}

func (m *MemoryStore) Activate(_ context.Context, jobID, workerID string, at time.Time) (*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if j.State != domain.JobWaiting {
		return nil, domain.ErrJobNotWaiting
	}
	activate(j, workerID, at)
	return j.Clone(), nil
}

func activate(j *domain.ScheduledJob, workerID string, at time.Time) {
	j.State = domain.JobActive
	j.Attempts++
	j.ClaimedBy = &workerID
	j.ClaimedAt = &at
	j.HeartbeatAt = &at
	j.UpdatedAt = at
}

// leased returns the job held under lease. Callers hold mu.
func (m *MemoryStore) leased(lease domain.Lease) (*domain.ScheduledJob, error) {
	j, ok := m.jobs[lease.JobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if j.State != domain.JobActive || j.Attempts != lease.Attempt {
		return nil, domain.ErrJobNotActive
	}
	return j, nil
}

func (m *MemoryStore) Heartbeat(_ context.Context, lease domain.Lease, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.leased(lease)
	if err != nil {
		return err
	}
	j.HeartbeatAt = &at
	return nil
}

func (m *MemoryStore) Complete(_ context.Context, lease domain.Lease, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.leased(lease)
	if err != nil {
		return err
	}
	j.State = domain.JobCompleted
	j.CompletedAt = &at
	j.UpdatedAt = at
	delete(m.live, keyOf(j))
	return nil
}

func (m *MemoryStore) Requeue(_ context.Context, lease domain.Lease, lastError string, notBefore, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.leased(lease)
	if err != nil {
		return err
	}
	j.State = domain.JobWaiting
	j.NotBefore = notBefore
	j.LastError = &lastError
	j.ClaimedBy = nil
	j.ClaimedAt = nil
	j.HeartbeatAt = nil
	j.UpdatedAt = at
	return nil
}

func (m *MemoryStore) Fail(_ context.Context, lease domain.Lease, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.leased(lease)
	if err != nil {
		return err
	}
	j.State = domain.JobFailed
	j.LastError = &lastError
	j.CompletedAt = &at
	j.UpdatedAt = at
	delete(m.live, keyOf(j))
	return nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.ScheduledJob
	for _, j := range m.jobs {
		if filter.State != "" && j.State != filter.State {
			continue
		}
		if filter.EmployeeJourneyID != "" && j.EmployeeJourneyID != filter.EmployeeJourneyID {
			continue
		}
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b *domain.ScheduledJob) int { return cmp.Compare(a.Seq, b.Seq) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return cloneAll(out), nil
}

func (m *MemoryStore) Counts(_ context.Context) (map[domain.JobState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[domain.JobState]int)
	for _, j := range m.jobs {
		counts[j.State]++
	}
	return counts, nil
}

func (m *MemoryStore) Remove(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if j.State == domain.JobActive {
		return fmt.Errorf("%w: job %s is mid-dispatch", domain.ErrInvalidOperation, jobID)
	}
	m.remove(j)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, j := range m.jobs {
		if j.State != domain.JobActive {
			m.remove(j)
			n++
		}
	}
	return n, nil
}

// remove drops j and its live marker. Callers hold mu.
func (m *MemoryStore) remove(j *domain.ScheduledJob) {
	delete(m.jobs, j.ID)
	if m.live[keyOf(j)] == j.ID {
		delete(m.live, keyOf(j))
	}
}

func (m *MemoryStore) Stale(_ context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.ScheduledJob
	for _, j := range m.jobs {
		if j.State == domain.JobActive && j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, func(a, b *domain.ScheduledJob) int { return a.HeartbeatAt.Compare(*b.HeartbeatAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return cloneAll(out), nil
}

func cloneAll(jobs []*domain.ScheduledJob) []*domain.ScheduledJob {
	out := make([]*domain.ScheduledJob, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out
}
