package models

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a referenced entity does not exist. It is
// surfaced to the caller unmodified and never retried.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NewNotFound builds a NotFoundError for the given entity and id
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StateError reports that an operation was attempted against an entity
// whose current status disallows it. It is surfaced, never silently coerced.
type StateError struct {
	Entity string
	ID     string
	Status string
	Want   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s is %s, want %s", e.Entity, e.ID, e.Status, e.Want)
}

// NewStateError builds a StateError for the given entity, id and statuses
func NewStateError(entity, id, status, want string) *StateError {
	return &StateError{Entity: entity, ID: id, Status: status, Want: want}
}

// IsStateError reports whether err is (or wraps) a StateError
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
