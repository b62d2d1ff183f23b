package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

// JourneyUsecase enrolls employees in journey templates and reads their
// progress.
type JourneyUsecase struct {
	employees repository.EmployeeRepository
	templates repository.TemplateRepository
	instances repository.InstanceRepository
	queue     *queue.Scheduler
}

func NewJourneyUsecase(
	employees repository.EmployeeRepository,
	templates repository.TemplateRepository,
	instances repository.InstanceRepository,
	q *queue.Scheduler,
) *JourneyUsecase {
	return &JourneyUsecase{employees: employees, templates: templates, instances: instances, queue: q}
}

type EnrollInput struct {
	EmployeeID string
	TemplateID string
	StartDate  time.Time
	// ActionSchedules optionally pins the dispatch instant per action id.
	ActionSchedules map[string]time.Time
}

// Enroll creates a pending employee journey and queues its first action.
func (u *JourneyUsecase) Enroll(ctx context.Context, input EnrollInput) (*domain.EmployeeJourney, error) {
	draft, err := domain.NewEmployeeJourney(input.EmployeeID, input.TemplateID, input.StartDate, input.ActionSchedules)
	if err != nil {
		return nil, err
	}

	if _, err := u.employees.FindByID(ctx, input.EmployeeID); err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	tpl, err := u.templates.FindByID(ctx, input.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	for id := range input.ActionSchedules {
		if _, _, ok := tpl.FindAction(id); !ok {
			return nil, &domain.ValidationError{
				Kind:   domain.ErrInvalidInstance,
				Field:  "actionSchedules." + id,
				Reason: "not an action of the template",
			}
		}
	}

	first, _ := tpl.ActionAt(0)
	req := queue.EnqueueRequest{Action: first, After: input.StartDate, At: draft.ScheduleFor(first.ID)}
	at, err := u.queue.Resolve(req)
	if err != nil {
		return nil, fmt.Errorf("schedule first action: %w", err)
	}
	scheduled := draft.WithSchedule(first.ID, at)

	inst, err := u.instances.Save(ctx, &scheduled)
	if err != nil {
		return nil, fmt.Errorf("save employee journey: %w", err)
	}

	// The saved instance carries the pinned instant, so periodic recovery
	// queues the same job if this write fails.
	req.EmployeeJourneyID = inst.ID
	req.At = &at
	if _, err := u.queue.Enqueue(ctx, req); err != nil {
		return nil, fmt.Errorf("enqueue first action: %w", err)
	}
	return inst, nil
}

func (u *JourneyUsecase) Get(ctx context.Context, id string) (*domain.EmployeeJourney, error) {
	inst, err := u.instances.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get employee journey: %w", err)
	}
	return inst, nil
}

func (u *JourneyUsecase) ListByEmployee(ctx context.Context, employeeID string) ([]*domain.EmployeeJourney, error) {
	if _, err := u.employees.FindByID(ctx, employeeID); err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	insts, err := u.instances.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list employee journeys: %w", err)
	}
	return insts, nil
}
