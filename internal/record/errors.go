package record

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no row matches a primary key.
	ErrNotFound = errors.New("record: not found")

	// ErrHydration is returned when a result row cannot populate an entity.
	ErrHydration = errors.New("record: hydration failed")

	// ErrState is returned when an operation is invalid for the record's state.
	ErrState = errors.New("record: invalid state")
)

// NotFoundError reports a primary key with no backing row.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record: %s with id %d not found", e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// HydrationError reports a result row that lacks a column the entity
// requires, or carries one of the wrong kind.
type HydrationError struct {
	Table  string
	Column string
	Reason string
}

func (e *HydrationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("record: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("record: %s column %q: %s", e.Table, e.Column, e.Reason)
}

func (e *HydrationError) Unwrap() error { return ErrHydration }

// StateError reports an operation attempted in a state that forbids it,
// such as saving a destroyed record or destroying a new one.
type StateError struct {
	Table string
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("record: cannot %s %s record in %s state", e.Op, e.Table, e.State)
}

func (e *StateError) Unwrap() error { return ErrState }
