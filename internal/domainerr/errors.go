// Package domainerr defines the error taxonomy shared by the budgeting core.
// All errors here are recoverable by the caller; the CLI layer translates
// them to user-visible messages. Unexpected persistence failures are passed
// through unchanged and are deliberately not represented here.
package domainerr

import (
	"errors"
	"fmt"
)

// ValidationError represents malformed input: an invalid recurrence rule,
// negative tolerances, or an import pattern that collides with another item.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NotFoundError represents a lookup of an unknown recurring item, match,
// or transaction id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ConflictError represents a state conflict: a double-realization race, an
// already-linked transaction, or an invalid match state transition.
type ConflictError struct {
	Entity string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict on %s: %s: %v", e.Entity, e.Reason, e.Err)
	}
	return fmt.Sprintf("conflict on %s: %s", e.Entity, e.Reason)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// InvariantError represents a domain invariant violation, e.g. an exception
// registered on a date the recurrence rule never produces.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsInvariant reports whether err is (or wraps) an InvariantError.
func IsInvariant(err error) bool {
	var target *InvariantError
	return errors.As(err, &target)
}
