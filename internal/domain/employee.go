package domain

import (
	"strings"
	"time"
)

type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" validate:"required,min=3,max=100"`
	Email      string    `json:"email" validate:"required,email"`
	Phone      string    `json:"phone" validate:"omitempty,e164"`
	Department string    `json:"department" validate:"omitempty,min=2,max=100"`
	Position   string    `json:"position" validate:"omitempty,min=2,max=100"`
	HireDate   time.Time `json:"hireDate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

var employeeValidator = newStructValidator()

// NewEmployee trims and validates an employee draft.
func NewEmployee(name, email, phone, department, position string, hireDate time.Time) (*Employee, error) {
	e := &Employee{
		Name:       strings.TrimSpace(name),
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Phone:      strings.TrimSpace(phone),
		Department: strings.TrimSpace(department),
		Position:   strings.TrimSpace(position),
		HireDate:   hireDate,
	}
	if err := employeeValidator.Struct(e); err != nil {
		return nil, fieldError(ErrInvalidEmployee, err, "")
	}
	return e, nil
}
