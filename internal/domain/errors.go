package domain

import "fmt"

// ValidationError reports malformed caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a link that already points elsewhere, or a
// concurrent transition that lost its optimistic check.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError formats a ConflictError.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotLinkedError reports an unlink-style operation on a record with no
// active link.
type NotLinkedError struct {
	Message string
}

func (e *NotLinkedError) Error() string { return e.Message }

// NewNotLinkedError formats a NotLinkedError.
func NewNotLinkedError(format string, args ...any) *NotLinkedError {
	return &NotLinkedError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError formats a NotFoundError.
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConstraintError reports a titan-store invariant violation, e.g. a duplicate
// natural key hit by the import promoter. Recorded per record, never aborts a
// batch.
type ConstraintError struct {
	Message string
}

func (e *ConstraintError) Error() string { return e.Message }

// NewConstraintError formats a ConstraintError.
func NewConstraintError(format string, args ...any) *ConstraintError {
	return &ConstraintError{Message: fmt.Sprintf(format, args...)}
}
