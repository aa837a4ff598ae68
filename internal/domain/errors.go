// Package domain holds the quote book's core types: quotes, filters, the
// statistics line and the errors the store reports.
//
// Errors carry a sentinel (ErrNotFound, ErrValidation, ErrCorruptData,
// ErrUnavailable) so callers can branch with errors.Is without knowing which
// adapter produced them. Mapping to transport codes is left to adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates no quote has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a quote or request field was rejected.
	ErrValidation = errors.New("validation failed")

	// ErrCorruptData indicates persisted data could not be decoded into a valid collection.
	ErrCorruptData = errors.New("corrupt data")

	// ErrUnavailable indicates the blob storage could not be read or written.
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundError names the quote id that was looked up.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("quote %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError reports that no quote has the given id.
func NewNotFoundError(id int64) error {
	return &NotFoundError{ID: id}
}

// ValidationError identifies the rejected field. Value, when set, is the raw
// input that failed.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError rejects field with a human-readable message.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue is NewValidationError keeping the offending input.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// CorruptDataError reports a persisted blob that cannot be decoded.
// Key is the storage key the blob was read from; Err is the decode failure.
type CorruptDataError struct {
	Key string
	Err error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt data at key %q: %v", e.Key, e.Err)
	}

	return fmt.Sprintf("corrupt data at key %q", e.Key)
}

// Unwrap returns both the sentinel and the underlying decode error.
func (e *CorruptDataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptData}
	}

	return []error{ErrCorruptData, e.Err}
}

// NewCorruptDataError creates a corrupt data error for the given key.
func NewCorruptDataError(key string, err error) error {
	return &CorruptDataError{Key: key, Err: err}
}

// UnavailableError reports a storage backend failure. Backend is the driver
// name; either Reason or Err explains the failure.
type UnavailableError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("storage %q unavailable: %v", e.Backend, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("storage %q unavailable: %s", e.Backend, e.Reason)
	default:
		return fmt.Sprintf("storage %q unavailable", e.Backend)
	}
}

// Unwrap exposes the sentinel and, when present, the backend's own error so
// errors.Is(err, context.Canceled) still works through it.
func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}

	return []error{ErrUnavailable, e.Err}
}

// NewUnavailableError reports backend as unavailable for reason.
func NewUnavailableError(backend, reason string) error {
	return &UnavailableError{Backend: backend, Reason: reason}
}

// WrapUnavailable reports backend as unavailable because of err.
func WrapUnavailable(backend string, err error) error {
	return &UnavailableError{Backend: backend, Err: err}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsCorruptData reports whether err is or wraps ErrCorruptData.
func IsCorruptData(err error) bool { return errors.Is(err, ErrCorruptData) }

// IsUnavailable reports whether err is or wraps ErrUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
