package handler

import (
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type templateResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Actions     []domain.Action `json:"actions"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toTemplateResponse(t *domain.Template) templateResponse {
	return templateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Actions:     t.Actions,
		CreatedAt:   t.CreatedAt,
	}
}

type employeeResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	Department string     `json:"department,omitempty"`
	Position   string     `json:"position,omitempty"`
	HireDate   *time.Time `json:"hireDate,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toEmployeeResponse(e *domain.Employee) employeeResponse {
	resp := employeeResponse{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Phone:      e.Phone,
		Department: e.Department,
		Position:   e.Position,
		CreatedAt:  e.CreatedAt,
	}
	if !e.HireDate.IsZero() {
		resp.HireDate = &e.HireDate
	}
	return resp
}

type instanceResponse struct {
	ID                 string                `json:"id"`
	EmployeeID         string                `json:"employeeId"`
	TemplateID         string                `json:"journeyTemplateId"`
	StartDate          time.Time             `json:"startDate"`
	Status             domain.InstanceStatus `json:"status"`
	CurrentActionIndex int                   `json:"currentActionIndex"`
	CompletedActions   []string              `json:"completedActions"`
	ActionSchedules    map[string]time.Time  `json:"actionSchedules"`
	LastError          *string               `json:"lastError,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

func toInstanceResponse(j *domain.EmployeeJourney) instanceResponse {
	c := j.Clone()
	return instanceResponse{
		ID:                 c.ID,
		EmployeeID:         c.EmployeeID,
		TemplateID:         c.TemplateID,
		StartDate:          c.StartDate,
		Status:             c.Status,
		CurrentActionIndex: c.CurrentActionIndex,
		CompletedActions:   c.CompletedActions,
		ActionSchedules:    c.ActionSchedules,
		LastError:          c.LastError,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type jobResponse struct {
	ID                string             `json:"id"`
	EmployeeJourneyID string             `json:"employeeJourneyId"`
	ActionID          string             `json:"actionId"`
	Channel           domain.ChannelType `json:"channel"`
	NotBefore         time.Time          `json:"notBefore"`
	State             domain.JobState    `json:"state"`
	Attempts          int                `json:"attempts"`
	MaxAttempts       int                `json:"maxAttempts"`
	ClaimedBy         *string            `json:"claimedBy,omitempty"`
	ClaimedAt         *time.Time         `json:"claimedAt,omitempty"`
	HeartbeatAt       *time.Time         `json:"heartbeatAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	LastError         *string            `json:"lastError,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

func toJobResponse(j *domain.ScheduledJob) jobResponse {
	return jobResponse{
		ID:                j.ID,
		EmployeeJourneyID: j.EmployeeJourneyID,
		ActionID:          j.ActionID,
		Channel:           j.Channel,
		NotBefore:         j.NotBefore,
		State:             j.State,
		Attempts:          j.Attempts,
		MaxAttempts:       j.MaxAttempts,
		ClaimedBy:         j.ClaimedBy,
		ClaimedAt:         j.ClaimedAt,
		HeartbeatAt:       j.HeartbeatAt,
		CompletedAt:       j.CompletedAt,
		LastError:         j.LastError,
		CreatedAt:         j.CreatedAt,
	}
}

type attemptResponse struct {
	ID          string     `json:"id"`
	JobID       string     `json:"jobId"`
	AttemptNum  int        `json:"attemptNum"`
	WorkerID    string     `json:"workerId"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	StatusCode  *int       `json:"statusCode"`
	Error       *string    `json:"error"`
	DurationMS  *int64     `json:"durationMs"`
}
