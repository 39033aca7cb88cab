package shared

import (
	"errors"
	"fmt"
)

// Error classes. Module errors wrap one of these so the HTTP layer can map
// them without knowing every module sentinel.
var (
	// ErrInvalidInput indicates malformed or missing input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the request clashes with existing state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an action not allowed in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized indicates the caller could not be resolved to a tenant.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks permission.
	ErrForbidden = errors.New("forbidden")
)

// InvalidInput wraps ErrInvalidInput with a caller-facing message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
