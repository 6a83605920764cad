package services

import (
	"errors"
	"fmt"

	"github.com/anonto42/pulse/backend/internal/repositories"
)

// NotFoundError reports that an addressed entity does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports a rule violation in the caller's input
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

// ForbiddenError reports that the caller does not own the entity it tried to change
type ForbiddenError struct {
	Entity string
}

func (e *ForbiddenError) Error() string {
	return "you are not allowed to modify this " + e.Entity
}

// ConflictError reports a uniqueness violation on the relationship ledger.
// The toggle coordinator resolves it internally by re-reading state.
type ConflictError struct {
	Op string
}

func (e *ConflictError) Error() string {
	return "conflict during " + e.Op
}

// StorageError wraps a failure of an underlying store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// notFoundOr turns repositories.ErrNotFound into a NotFoundError and anything else into a StorageError
func notFoundOr(entity, id, op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return storageErr(op, err)
}
