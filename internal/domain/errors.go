package domain

import "errors"

var (
	// ErrNotFound reports an unknown debt or other entity id.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySettled reports a payment attempted on a zero-balance debt.
	ErrAlreadySettled = errors.New("debt already settled")

	// ErrConflict reports a reference collision on create. Callers are
	// expected to retry with a fresh reference attempt.
	ErrConflict = errors.New("reference already exists")
)

// ValidationError carries field-level detail for rejected input. The
// operation is never attempted when validation fails.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
