// Package apperr defines the error taxonomy shared by the store, the
// repositories and the session manager.
//
//   - ValidationError: a required field is missing or malformed. Returned before
//     any store write happens.
//   - NotFoundError: the operation targets an id that does not exist.
//   - StoreError: an I/O or constraint fault reported by the persistent store.
//
// HTTP handlers map these to 400, 404 and 500 respectively.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError indicates that a required field is absent or invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NotFoundError indicates that a record with the given id does not exist.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// StoreError wraps a fault raised by the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Required returns a ValidationError for a missing field.
func Required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// Invalid returns a ValidationError with a custom message.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound returns a NotFoundError for the given resource and id.
func NotFound(resource string, id uint) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Store wraps err as a StoreError. Nil stays nil, and errors that are already
// classified are returned unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	var nf *NotFoundError
	var ve *ValidationError
	if errors.As(err, &se) || errors.As(err, &nf) || errors.As(err, &ve) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStore reports whether err is (or wraps) a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
