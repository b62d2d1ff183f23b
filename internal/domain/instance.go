package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

type InstanceStatus string

const (
	InstancePending    InstanceStatus = "pending"
	InstanceInProgress InstanceStatus = "in_progress"
	InstanceCompleted  InstanceStatus = "completed"
	InstanceFailed     InstanceStatus = "failed"
)

// EmployeeJourney is one employee's progress through one template.
//
// The transition methods have value receivers and return the next state
// without touching the receiver; callers persist the result.
type EmployeeJourney struct {
	ID                 string
	EmployeeID         string
	TemplateID         string
	StartDate          time.Time
	Status             InstanceStatus
	CurrentActionIndex int
	CompletedActions   []string
	// ActionSchedules holds the resolved dispatch instant per action id,
	// written once when the action is first enqueued.
	ActionSchedules map[string]time.Time
	LastError       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEmployeeJourney builds a pending instance. schedules may pin the
// dispatch instant of individual actions and may be nil.
func NewEmployeeJourney(employeeID, templateID string, startDate time.Time, schedules map[string]time.Time) (*EmployeeJourney, error) {
	switch {
	case strings.TrimSpace(employeeID) == "":
		return nil, invalid(ErrInvalidInstance, "employeeId", "required")
	case strings.TrimSpace(templateID) == "":
		return nil, invalid(ErrInvalidInstance, "journeyTemplateId", "required")
	case startDate.IsZero():
		return nil, invalid(ErrInvalidInstance, "startDate", "required")
	}
	s := make(map[string]time.Time, len(schedules))
	maps.Copy(s, schedules)
	return &EmployeeJourney{
		EmployeeID:       employeeID,
		TemplateID:       templateID,
		StartDate:        startDate,
		Status:           InstancePending,
		CompletedActions: []string{},
		ActionSchedules:  s,
	}, nil
}

func (j EmployeeJourney) IsTerminal() bool {
	return j.Status == InstanceCompleted || j.Status == InstanceFailed
}

// Clone returns a copy that shares no slices or maps with j.
func (j EmployeeJourney) Clone() EmployeeJourney {
	j.CompletedActions = slices.Clone(j.CompletedActions)
	if j.CompletedActions == nil {
		j.CompletedActions = []string{}
	}
	j.ActionSchedules = maps.Clone(j.ActionSchedules)
	if j.ActionSchedules == nil {
		j.ActionSchedules = map[string]time.Time{}
	}
	if j.LastError != nil {
		msg := *j.LastError
		j.LastError = &msg
	}
	return j
}

func (j EmployeeJourney) MarkInProgress() EmployeeJourney {
	next := j.Clone()
	if next.Status == InstancePending {
		next.Status = InstanceInProgress
	}
	return next
}

// MarkActionCompleted records actionID as done and moves the pointer to the
// following action.
func (j EmployeeJourney) MarkActionCompleted(actionID string) EmployeeJourney {
	next := j.Clone()
	if !next.IsTerminal() {
		next.Status = InstanceInProgress
	}
	next.CompletedActions = append(next.CompletedActions, actionID)
	next.CurrentActionIndex++
	return next
}

// AdvanceStatus derives completed once the pointer has passed the last of
// actionCount actions.
func (j EmployeeJourney) AdvanceStatus(actionCount int) EmployeeJourney {
	next := j.Clone()
	if !next.IsTerminal() && next.CurrentActionIndex >= actionCount {
		next.Status = InstanceCompleted
	}
	return next
}

// MarkActionFailed halts the journey on the current action.
func (j EmployeeJourney) MarkActionFailed(reason string) EmployeeJourney {
	next := j.Clone()
	next.Status = InstanceFailed
	next.LastError = &reason
	return next
}

func (j EmployeeJourney) WithSchedule(actionID string, at time.Time) EmployeeJourney {
	next := j.Clone()
	next.ActionSchedules[actionID] = at
	return next
}

// ScheduleFor returns the pinned instant for actionID, if any.
func (j EmployeeJourney) ScheduleFor(actionID string) *time.Time {
	at, ok := j.ActionSchedules[actionID]
	if !ok {
		return nil
	}
	return &at
}
