package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InstanceRepository struct {
	pool *pgxpool.Pool
}

func NewInstanceRepository(pool *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{pool: pool}
}

const instanceColumns = `id, employee_id, template_id, start_date, status, current_action_index,
		completed_actions, action_schedules, last_error, created_at, updated_at`

func (r *InstanceRepository) Save(ctx context.Context, j *domain.EmployeeJourney) (*domain.EmployeeJourney, error) {
	query := `
		INSERT INTO employee_journeys (
			employee_id, template_id, start_date, status, current_action_index,
			completed_actions, action_schedules, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + instanceColumns

	c := j.Clone()
	row := r.pool.QueryRow(ctx, query,
		c.EmployeeID,
		c.TemplateID,
		c.StartDate,
		c.Status,
		c.CurrentActionIndex,
		c.CompletedActions,
		c.ActionSchedules,
		c.LastError,
	)
	created, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("save employee journey: %w", err)
	}
	return created, nil
}

func (r *InstanceRepository) FindByID(ctx context.Context, id string) (*domain.EmployeeJourney, error) {
	query := `SELECT ` + instanceColumns + ` FROM employee_journeys WHERE id = $1`
	return scanInstance(r.pool.QueryRow(ctx, query, id))
}

func (r *InstanceRepository) Update(ctx context.Context, j *domain.EmployeeJourney) error {
	c := j.Clone()
	tag, err := r.pool.Exec(ctx, `
		UPDATE employee_journeys
		SET    status               = $2,
		       current_action_index = $3,
		       completed_actions    = $4,
		       action_schedules     = $5,
		       last_error           = $6,
		       updated_at           = NOW()
		WHERE id = $1`,
		c.ID, c.Status, c.CurrentActionIndex, c.CompletedActions, c.ActionSchedules, c.LastError,
	)
	if err != nil {
		return fmt.Errorf("update employee journey: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

func (r *InstanceRepository) FindByEmployeeID(ctx context.Context, employeeID string) ([]*domain.EmployeeJourney, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM employee_journeys
		WHERE employee_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list employee journeys: %w", err)
	}
	return collectInstances(rows)
}

func (r *InstanceRepository) FindPendingActions(ctx context.Context) ([]*domain.EmployeeJourney, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM employee_journeys
		WHERE status IN ('pending', 'in_progress')
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find pending actions: %w", err)
	}
	return collectInstances(rows)
}

func collectInstances(rows pgx.Rows) ([]*domain.EmployeeJourney, error) {
	defer rows.Close()

	out := []*domain.EmployeeJourney{}
	for rows.Next() {
		j, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanInstance(row rowScanner) (*domain.EmployeeJourney, error) {
	var j domain.EmployeeJourney
	err := row.Scan(
		&j.ID, &j.EmployeeID, &j.TemplateID, &j.StartDate, &j.Status, &j.CurrentActionIndex,
		&j.CompletedActions, &j.ActionSchedules, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("scan employee journey: %w", err)
	}
	j.StartDate = j.StartDate.UTC()
	for id, at := range j.ActionSchedules {
		j.ActionSchedules[id] = at.UTC()
	}
	if j.ActionSchedules == nil {
		j.ActionSchedules = map[string]time.Time{}
	}
	return &j, nil
}
