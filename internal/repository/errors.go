package repository

import (
	"errors"
	"fmt"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

// Common repository errors that can be checked with errors.Is()
var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when attempting to create an entity that already exists
	ErrDuplicate = persistence.ErrDuplicate

	// ErrInvalidEntity is returned when an entity fails validation
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInsertFailed matches every *InsertError
	ErrInsertFailed = errors.New("insert failed")

	// ErrUpdateFailed matches every *UpdateError
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed matches every *DeleteError
	ErrDeleteFailed = errors.New("delete failed")

	// ErrUnknownIdentity is returned when a mapping declares no identity accessor
	ErrUnknownIdentity = errors.New("no identity accessor declared")
)

// InsertError reports a failed insert
type InsertError struct {
	Entity string
	Err    error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("error during the persisting of %s: %v", e.Entity, e.Err)
}

func (e *InsertError) Unwrap() []error { return []error{ErrInsertFailed, e.Err} }

// UpdateError reports a failed update, including a failed insert promoted
// from an update
type UpdateError struct {
	Entity string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("error during the update of %s: %v", e.Entity, e.Err)
}

func (e *UpdateError) Unwrap() []error { return []error{ErrUpdateFailed, e.Err} }

// DeleteError reports a failed delete
type DeleteError struct {
	Entity string
	Err    error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("error during the delete of %s: %v", e.Entity, e.Err)
}

func (e *DeleteError) Unwrap() []error { return []error{ErrDeleteFailed, e.Err} }
