package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTemplate = errors.New("invalid journey template")
	ErrInvalidAction   = errors.New("invalid journey action")
	ErrInvalidInstance = errors.New("invalid employee journey")
	ErrInvalidEmployee = errors.New("invalid employee")

	ErrEmployeeNotFound = errors.New("employee not found")
	ErrTemplateNotFound = errors.New("journey template not found")
	ErrInstanceNotFound = errors.New("employee journey not found")
	ErrActionNotFound   = errors.New("journey action not found")
	ErrJobNotFound      = errors.New("job not found")

	ErrInvalidOperation  = errors.New("invalid operation")
	ErrJobNotWaiting     = errors.New("job is not waiting")
	ErrJobNotActive      = errors.New("job is not active under this lease")
	ErrDuplicateJob      = errors.New("a live job already exists for this action")
	ErrDuplicateEmployee = errors.New("employee with this email already exists")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ValidationError reports the first offending field of a rejected entity.
// Kind is one of the ErrInvalid* sentinels, so errors.Is works against it.
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}
