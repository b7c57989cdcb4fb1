package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for common registry error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrCapacityExceeded indicates the number of distinct names would exceed
	// the registry capacity. No partial state is persisted when this is raised.
	ErrCapacityExceeded = errors.New("registry capacity exceeded")

	// ErrDuplicateRegistration indicates a strict registration attempt for a
	// name that already has a live handle. This is a programmer error,
	// typically caused by two components claiming the same name during
	// initialization.
	ErrDuplicateRegistration = errors.New("name already registered")

	// ErrOwnershipConflict indicates an owner-checked operation found the name
	// registered by a different owner. The error context carries the original
	// registration record to aid diagnosis.
	ErrOwnershipConflict = errors.New("name registered by different owner")

	// ErrPersistenceFailure indicates the durable enum store could not be
	// rewritten. The triggering registration is aborted so that in-memory and
	// durable state never diverge.
	ErrPersistenceFailure = errors.New("enum store write failed")

	// ErrStaleHandle indicates an unregister attempt with a handle that is not
	// the one currently registered for its id.
	ErrStaleHandle = errors.New("handle is not currently registered")

	// ErrInvalidName indicates an empty or otherwise unusable name.
	ErrInvalidName = errors.New("invalid name")
)

// Error kinds categorize errors by their type.
const (
	// KindCapacity represents errors raised at the id capacity boundary.
	KindCapacity = "capacity"

	// KindDuplicate represents strict-registration collisions.
	KindDuplicate = "duplicate"

	// KindOwnership represents cross-owner name conflicts.
	KindOwnership = "ownership"

	// KindPersistence represents durable enum store write failures.
	KindPersistence = "persistence"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindInternal represents internal registry errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category
// of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g., "Registry.Register").
	Op string

	// Kind categorizes the error (e.g., KindCapacity, KindOwnership).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// Ownership errors carry the original registration record here,
	// including the stack captured when the name was first registered.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("enumid: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("enumid: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("enumid: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or on another Error's Kind.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}
