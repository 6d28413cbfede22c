package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the scheduling core and translated at the API boundary.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrConflict             = errors.New("slot conflict")
	ErrNoEmployeesAvailable = errors.New("no employees available")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInternal             = errors.New("internal error")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Code returns the stable machine-readable code of err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNoEmployeesAvailable):
		return "no_employees_available"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
