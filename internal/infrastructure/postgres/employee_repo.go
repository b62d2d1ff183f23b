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

type EmployeeRepository struct {
	pool *pgxpool.Pool
}

func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

const employeeColumns = `id, name, email, phone, department, position, hire_date, created_at, updated_at`

func (r *EmployeeRepository) Save(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	var hireDate *time.Time
	if !e.HireDate.IsZero() {
		hireDate = &e.HireDate
	}

	query := `
		INSERT INTO employees (name, email, phone, department, position, hire_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + employeeColumns

	row := r.pool.QueryRow(ctx, query, e.Name, e.Email, e.Phone, e.Department, e.Position, hireDate)
	created, err := scanEmployee(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateEmployee
		}
		return nil, err
	}
	return created, nil
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	return scanEmployee(r.pool.QueryRow(ctx, query, id))
}

func (r *EmployeeRepository) List(ctx context.Context, limit int) ([]*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := []*domain.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var (
		e        domain.Employee
		hireDate *time.Time
	)
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Department, &e.Position, &hireDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	if hireDate != nil {
		e.HireDate = *hireDate
	}
	return &e, nil
}
