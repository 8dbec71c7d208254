package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Kind EntityKind
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("entity %s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError reports insufficient available quantity. Available is the
// quantity observed at the moment of rejection.
type ConflictError struct {
	EntityID  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("insufficient quantity on %s: requested %s, available %s",
		e.EntityID, e.Requested.String(), e.Available.String())
}

// StateError reports an operation that is invalid for the entity's status.
type StateError struct {
	EntityID string
	Status   string
	Message  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is %s: %s", e.EntityID, e.Status, e.Message)
}

// AuthorizationError reports a caller that may not perform the operation.
type AuthorizationError struct {
	UserID string
	Action Action
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q may not %s: %s", e.UserID, e.Action, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
