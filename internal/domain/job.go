package domain

import (
	"time"
)

type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

func (s JobState) Valid() bool {
	switch s {
	case JobWaiting, JobActive, JobCompleted, JobFailed:
		return true
	}
	return false
}

// ScheduledJob asks for one action of one instance to run no earlier than
// NotBefore.
type ScheduledJob struct {
	ID                string
	Seq               int64 // enqueue order, breaks NotBefore ties
	EmployeeJourneyID string
	ActionID          string
	Channel           ChannelType

	NotBefore time.Time
	State     JobState

	// Attempts counts claims, so it also identifies the current lease.
	Attempts    int
	MaxAttempts int

	ClaimedAt   *time.Time
	ClaimedBy   *string // worker ID
	HeartbeatAt *time.Time
	CompletedAt *time.Time
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j *ScheduledJob) Exhausted() bool { return j.Attempts >= j.MaxAttempts }

// Lease identifies one claim of a job. Transitions out of active state must
// present the lease they were granted, so a worker whose job was reclaimed
// cannot complete someone else's attempt.
type Lease struct {
	JobID   string
	Attempt int
}

func (j *ScheduledJob) Lease() Lease { return Lease{JobID: j.ID, Attempt: j.Attempts} }

func (j *ScheduledJob) Clone() *ScheduledJob {
	c := *j
	c.ClaimedAt = cloneTime(j.ClaimedAt)
	c.HeartbeatAt = cloneTime(j.HeartbeatAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	if j.ClaimedBy != nil {
		v := *j.ClaimedBy
		c.ClaimedBy = &v
	}
	if j.LastError != nil {
		v := *j.LastError
		c.LastError = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type JobAttempt struct {
	ID          string
	JobID       string
	AttemptNum  int
	WorkerID    string
	StartedAt   time.Time
	CompletedAt *time.Time
	StatusCode  *int
	Error       *string
	DurationMS  *int64
}
