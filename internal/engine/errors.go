package engine

import (
	"errors"
	"fmt"

	"techfixer/internal/repo"
)

var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrTerminalState        = errors.New("task is finished and can no longer be updated")
	ErrConflict             = errors.New("conflict")
	ErrInvalidCredentials   = errors.New("invalid credentials")

	// ErrMissingAuthor is returned when a task is created without an author.
	ErrMissingAuthor = MissingFieldError{Field: "author_id"}
)

// NotFoundError names the entity whose id did not resolve.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

type AlreadyExistsError struct {
	Entity string
	Name   string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

func (e AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

// ConflictError reports a delete refused because dependents still exist.
type ConflictError struct {
	Entity string
	ID     int64
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// notFound maps a repo miss onto a typed NotFoundError and passes other
// errors through.
func notFound(entity string, id int64, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Entity: entity, ID: id}
	}
	return err
}
