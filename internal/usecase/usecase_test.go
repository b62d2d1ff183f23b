package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/memory"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

// ---- helpers ----

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	employees *usecase.EmployeeUsecase
	templates *usecase.TemplateUsecase
	journeys  *usecase.JourneyUsecase
	jobs      *usecase.QueueUsecase
	queue     *queue.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	employeeRepo := memory.NewEmployeeRepository()
	templateRepo := memory.NewTemplateRepository()
	instanceRepo := memory.NewInstanceRepository()
	q := queue.New(queue.NewMemoryStore(), queue.Config{Clock: func() time.Time { return now }})
	return &fixture{
		employees: usecase.NewEmployeeUsecase(employeeRepo),
		templates: usecase.NewTemplateUsecase(templateRepo),
		journeys:  usecase.NewJourneyUsecase(employeeRepo, templateRepo, instanceRepo, q),
		jobs:      usecase.NewQueueUsecase(q, memory.NewAttemptRepository()),
		queue:     q,
	}
}

func (f *fixture) seed(t *testing.T) (*domain.Employee, *domain.Template) {
	t.Helper()
	ctx := context.Background()
	emp, err := f.employees.Create(ctx, usecase.CreateEmployeeInput{
		Name:  "Ada Lovelace",
		Email: "Ada@Example.com",
		Phone: "+15550001111",
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	tpl, err := f.templates.Create(ctx, usecase.CreateTemplateInput{
		Name:        "Onboarding",
		Description: "First week onboarding journey",
		Actions: []domain.Action{
			{Type: domain.ChannelEmail, Order: 0, Delay: time.Hour, Config: domain.EmailConfig{To: "ada@example.com", Subject: "Hi", Body: "Welcome"}},
			{Type: domain.ChannelChat, Order: 1, Config: domain.ChatConfig{To: "+15550001111", Message: "Ping"}},
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return emp, tpl
}

// ---- Enroll ----

func TestEnroll_QueuesFirstAction(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)
	ctx := context.Background()

	inst, err := f.journeys.Enroll(ctx, usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID, StartDate: now})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Status != domain.InstancePending {
		t.Errorf("expected pending, got %s", inst.Status)
	}

	jobs, err := f.jobs.ListJobs(ctx, usecase.ListJobsInput{EmployeeJourneyID: inst.ID})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	want := now.Add(time.Hour)
	if jobs[0].ActionID != tpl.Actions[0].ID || !jobs[0].NotBefore.Equal(want) {
		t.Errorf("expected first action at %s, got %s at %s", want, jobs[0].ActionID, jobs[0].NotBefore)
	}
	if at := inst.ScheduleFor(tpl.Actions[0].ID); at == nil || !at.Equal(want) {
		t.Errorf("expected schedule recorded on the instance, got %v", at)
	}
}

func TestEnroll_FutureStartDatePostponesJourney(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)
	start := now.Add(7 * 24 * time.Hour)

	inst, err := f.journeys.Enroll(context.Background(), usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID, StartDate: start})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at := inst.ScheduleFor(tpl.Actions[0].ID); at == nil || !at.Equal(start.Add(time.Hour)) {
		t.Errorf("expected start date plus delay, got %v", at)
	}
}

func TestEnroll_PinnedScheduleWins(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)
	pinned := now.Add(5 * time.Minute)

	inst, err := f.journeys.Enroll(context.Background(), usecase.EnrollInput{
		EmployeeID:      emp.ID,
		TemplateID:      tpl.ID,
		StartDate:       now,
		ActionSchedules: map[string]time.Time{tpl.Actions[0].ID: pinned},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	due, err := f.queue.DueJobs(context.Background(), pinned, 10)
	if err != nil {
		t.Fatalf("due jobs: %v", err)
	}
	if len(due) != 1 || due[0].EmployeeJourneyID != inst.ID {
		t.Errorf("expected the pinned job to be due at %s, got %d jobs", pinned, len(due))
	}
}

func TestEnroll_Errors(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)

	tests := []struct {
		name  string
		input usecase.EnrollInput
		want  error
	}{
		{
			name:  "unknown employee",
			input: usecase.EnrollInput{EmployeeID: "nobody", TemplateID: tpl.ID, StartDate: now},
			want:  domain.ErrEmployeeNotFound,
		},
		{
			name:  "unknown template",
			input: usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: "nothing", StartDate: now},
			want:  domain.ErrTemplateNotFound,
		},
		{
			name:  "missing start date",
			input: usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID},
			want:  domain.ErrInvalidInstance,
		},
		{
			name: "schedule for foreign action",
			input: usecase.EnrollInput{
				EmployeeID:      emp.ID,
				TemplateID:      tpl.ID,
				StartDate:       now,
				ActionSchedules: map[string]time.Time{"other": now},
			},
			want: domain.ErrInvalidInstance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.journeys.Enroll(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	counts, err := f.jobs.Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[domain.JobWaiting] != 0 {
		t.Errorf("expected no jobs after failed enrollments, got %d", counts[domain.JobWaiting])
	}
}

func TestListByEmployee(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)
	ctx := context.Background()

	for range 2 {
		if _, err := f.journeys.Enroll(ctx, usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID, StartDate: now}); err != nil {
			t.Fatalf("enroll: %v", err)
		}
	}

	insts, err := f.journeys.ListByEmployee(ctx, emp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insts) != 2 {
		t.Errorf("expected 2 journeys, got %d", len(insts))
	}

	if _, err := f.journeys.ListByEmployee(ctx, "nobody"); !errors.Is(err, domain.ErrEmployeeNotFound) {
		t.Errorf("expected ErrEmployeeNotFound, got %v", err)
	}
}

// ---- Employees / templates ----

func TestCreateEmployee_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	emp, _ := f.seed(t)

	if emp.Email != "ada@example.com" {
		t.Errorf("expected lowercased email, got %q", emp.Email)
	}

	_, err := f.employees.Create(context.Background(), usecase.CreateEmployeeInput{Name: "Ada Again", Email: "ada@example.com"})
	if !errors.Is(err, domain.ErrDuplicateEmployee) {
		t.Errorf("expected ErrDuplicateEmployee, got %v", err)
	}
}

func TestCreateTemplate_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.templates.Create(context.Background(), usecase.CreateTemplateInput{Name: "No", Description: "too short name here"})
	if !errors.Is(err, domain.ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
}

// ---- Queue ----

func TestQueue_AttemptsOfUnknownJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.jobs.Attempts(context.Background(), "job_404"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestQueue_RemoveAndClear(t *testing.T) {
	f := newFixture(t)
	emp, tpl := f.seed(t)
	ctx := context.Background()

	inst, err := f.journeys.Enroll(ctx, usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID, StartDate: now})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	jobs, _ := f.jobs.ListJobs(ctx, usecase.ListJobsInput{EmployeeJourneyID: inst.ID})
	if err := f.jobs.RemoveJob(ctx, jobs[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.jobs.GetJob(ctx, jobs[0].ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected removed job to be gone, got %v", err)
	}

	if _, err := f.journeys.Enroll(ctx, usecase.EnrollInput{EmployeeID: emp.ID, TemplateID: tpl.ID, StartDate: now}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	n, err := f.jobs.ClearJobs(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cleared job, got %d", n)
	}
}

// ---- Tokens ----

func TestTokenIssuer_Issue(t *testing.T) {
	key := []byte("test-jwt-secret-at-least-32-chars!!")
	signed, err := usecase.NewTokenIssuer(key, time.Hour).Issue("ops@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil || !token.Valid {
		t.Fatalf("expected valid token, got %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != "ops@example.com" {
		t.Errorf("expected sub ops@example.com, got %v", claims["sub"])
	}
	if claims["role"] != "operator" {
		t.Errorf("expected operator role, got %v", claims["role"])
	}
}
