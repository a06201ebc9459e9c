package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type StateError struct {
	Entity string
	ID     int64
	Status string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %s", e.Op, e.Entity, e.ID, e.Status)
}

func InvalidState(entity string, id int64, status, op string) error {
	return &StateError{Entity: entity, ID: id, Status: status, Op: op}
}

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

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConcurrencyError reports a transaction the store refused to serialize.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent update during %s: %v", e.Op, e.Err)
}

func (e *ConcurrencyError) Unwrap() error {
	return e.Err
}

type PermissionError struct {
	Capability string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not allowed to %s: %s", e.Capability, e.Reason)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}
