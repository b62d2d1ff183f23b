package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/postgres"
)

// testPool connects to TEST_DATABASE_URL and empties every table.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE job_attempts, scheduled_jobs, employee_journeys, employees, journey_templates`)
	require.NoError(t, err)
	return pool
}

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func waitingJob(instanceID, actionID string, notBefore time.Time) *domain.ScheduledJob {
	return &domain.ScheduledJob{
		EmployeeJourneyID: instanceID,
		ActionID:          actionID,
		Channel:           domain.ChannelEmail,
		NotBefore:         notBefore,
		State:             domain.JobWaiting,
		MaxAttempts:       3,
		CreatedAt:         t0,
		UpdatedAt:         t0,
	}
}

func TestJobStoreClaimAndLease(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewJobStore(testPool(t))

	late, err := store.Insert(ctx, waitingJob("inst-1", "a", t0.Add(time.Minute)))
	require.NoError(t, err)
	early, err := store.Insert(ctx, waitingJob("inst-2", "a", t0))
	require.NoError(t, err)
	_, err = store.Insert(ctx, waitingJob("inst-3", "a", t0.Add(time.Hour)))
	require.NoError(t, err)

	_, err = store.Insert(ctx, waitingJob("inst-1", "a", t0))
	assert.ErrorIs(t, err, domain.ErrDuplicateJob)

	due, err := store.Due(ctx, t0.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	claimed, err := store.Claim(ctx, "w1", t0.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, early.ID, claimed[0].ID)
	assert.Equal(t, 1, claimed[0].Attempts)
	require.NotNil(t, claimed[0].ClaimedBy)
	assert.Equal(t, "w1", *claimed[0].ClaimedBy)

	again, err := store.Claim(ctx, "w2", t0.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	stale := domain.Lease{JobID: early.ID, Attempt: 0}
	assert.ErrorIs(t, store.Complete(ctx, stale, t0), domain.ErrJobNotActive)
	assert.ErrorIs(t, store.Heartbeat(ctx, domain.Lease{JobID: "nope", Attempt: 1}, t0), domain.ErrJobNotFound)

	require.NoError(t, store.Heartbeat(ctx, claimed[0].Lease(), t0.Add(2*time.Minute)))
	require.NoError(t, store.Complete(ctx, claimed[0].Lease(), t0.Add(2*time.Minute)))

	// The completed job no longer blocks a new live job for its action.
	_, err = store.Insert(ctx, waitingJob("inst-2", "a", t0))
	require.NoError(t, err)

	require.NoError(t, store.Requeue(ctx, claimed[1].Lease(), "timeout", t0.Add(time.Hour), t0))
	got, err := store.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, got.State)
	assert.Equal(t, t0.Add(time.Hour), got.NotBefore)
	require.NotNil(t, got.LastError)
	assert.Nil(t, got.ClaimedBy)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.JobWaiting])
	assert.Equal(t, 1, counts[domain.JobCompleted])
}

func TestJobStoreActivateRemoveStale(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewJobStore(testPool(t))

	job, err := store.Insert(ctx, waitingJob("inst-1", "a", t0.Add(24*time.Hour)))
	require.NoError(t, err)

	active, err := store.Activate(ctx, job.ID, "w1", t0)
	require.NoError(t, err)
	assert.Equal(t, domain.JobActive, active.State)

	_, err = store.Activate(ctx, job.ID, "w2", t0)
	assert.ErrorIs(t, err, domain.ErrJobNotWaiting)
	_, err = store.Activate(ctx, "missing", "w2", t0)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	assert.ErrorIs(t, store.Remove(ctx, job.ID), domain.ErrInvalidOperation)

	stale, err := store.Stale(ctx, t0.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, job.ID, stale[0].ID)

	require.NoError(t, store.Fail(ctx, active.Lease(), "boom", t0.Add(time.Minute)))
	require.NoError(t, store.Remove(ctx, job.ID))
	_, err = store.Get(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = store.Insert(ctx, waitingJob("inst-2", "a", t0))
	require.NoError(t, err)
	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepositoriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	templates := postgres.NewTemplateRepository(pool)
	employees := postgres.NewEmployeeRepository(pool)
	instances := postgres.NewInstanceRepository(pool)

	draft, err := domain.NewTemplate("Onboarding", "First week onboarding journey", []domain.Action{
		{Type: domain.ChannelAPI, Order: 0, Delay: time.Hour, Config: domain.APIConfig{URL: "https://hr.example.com/accounts", Method: "POST"}},
		{Type: domain.ChannelChat, Order: 1, ExecutionTime: "09:00", Config: domain.ChatConfig{To: "+15550001111", Message: "Hi"}},
	})
	require.NoError(t, err)
	tpl, err := templates.Save(ctx, draft)
	require.NoError(t, err)

	found, err := templates.FindByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Actions, found.Actions)

	_, err = templates.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	e, err := domain.NewEmployee("Ada Lovelace", "ada@example.com", "", "", "", time.Time{})
	require.NoError(t, err)
	emp, err := employees.Save(ctx, e)
	require.NoError(t, err)
	_, err = employees.Save(ctx, e)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmployee)

	j, err := domain.NewEmployeeJourney(emp.ID, tpl.ID, t0, map[string]time.Time{tpl.Actions[0].ID: t0.Add(time.Hour)})
	require.NoError(t, err)
	inst, err := instances.Save(ctx, j)
	require.NoError(t, err)

	next := inst.MarkActionCompleted(tpl.Actions[0].ID).AdvanceStatus(tpl.Len())
	require.NoError(t, instances.Update(ctx, &next))

	got, err := instances.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceInProgress, got.Status)
	assert.Equal(t, []string{tpl.Actions[0].ID}, got.CompletedActions)
	require.NotNil(t, got.ScheduleFor(tpl.Actions[0].ID))
	assert.True(t, got.ScheduleFor(tpl.Actions[0].ID).Equal(t0.Add(time.Hour)))

	pending, err := instances.FindPendingActions(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	byEmployee, err := instances.FindByEmployeeID(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, byEmployee, 1)
}

func TestAttemptRepository(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	store := postgres.NewJobStore(pool)
	attempts := postgres.NewAttemptRepository(pool)

	job, err := store.Insert(ctx, waitingJob("inst-1", "a", t0))
	require.NoError(t, err)

	second, err := attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: job.ID, AttemptNum: 2, WorkerID: "w1", StartedAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	first, err := attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: job.ID, AttemptNum: 1, WorkerID: "w1", StartedAt: t0})
	require.NoError(t, err)

	msg := "smtp timeout"
	require.NoError(t, attempts.CompleteAttempt(ctx, first.ID, nil, &msg, 120))
	other := "ignored"
	require.NoError(t, attempts.CompleteAttempt(ctx, first.ID, nil, &other, 5))
	require.Error(t, attempts.CompleteAttempt(ctx, "00000000-0000-0000-0000-000000000000", nil, nil, 1))

	list, err := attempts.ListByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	require.NotNil(t, list[0].Error)
	assert.Equal(t, msg, *list[0].Error)
	require.NotNil(t, list[0].DurationMS)
	assert.EqualValues(t, 120, *list[0].DurationMS)
	assert.Nil(t, list[1].CompletedAt)

	_, err = attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: "missing", AttemptNum: 1, WorkerID: "w1", StartedAt: t0})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
