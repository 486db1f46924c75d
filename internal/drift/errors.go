package drift

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced student, record, drift or fingerprint is absent.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation means a request broke a declared limit.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidTransition means a lifecycle event does not apply to the
	// drift's current status.
	ErrInvalidTransition = fmt.Errorf("%w: invalid drift transition", ErrConstraintViolation)

	// ErrExternalServiceUnavailable means the assistant backend could not answer.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}
