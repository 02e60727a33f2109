package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/conteo/internal/store"
)

// Error represents a failed engine operation.
//
// Error codes:
//   - VALIDATION: input rejected before anything was written
//   - ALREADY_FINALIZED: the count no longer accepts changes
//   - STORAGE_UNAVAILABLE: the durable store failed
//   - COUNT_NOT_FOUND: the referenced count does not exist
//   - COUNT_EXISTS: a count with the requested ID already exists
//
// Error includes structured fields for diagnostics and CLI output.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// CountID identifies the affected count.
	CountID string

	// Field names the rejected input (validation errors only).
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION"
	ErrCodeAlreadyFinalized   ErrorCode = "ALREADY_FINALIZED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeNotFound           ErrorCode = "COUNT_NOT_FOUND"
	ErrCodeExists             ErrorCode = "COUNT_EXISTS"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.CountID != "" {
		msg = fmt.Sprintf("%s (count=%s)", msg, e.CountID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidationError returns true if the input was rejected.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsAlreadyFinalized returns true if the count was already finalized.
func IsAlreadyFinalized(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyFinalized
}

// IsStorageUnavailable returns true if the store failed.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStorageUnavailable
}

// IsNotFound returns true if the count does not exist.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsExists returns true if the count already exists.
func IsExists(err error) bool {
	return CodeOf(err) == ErrCodeExists
}

// NewValidationError creates an Error for rejected input.
func NewValidationError(countID, field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		CountID: countID,
		Field:   field,
	}
}

// NewAlreadyFinalizedError creates an Error for a closed count.
func NewAlreadyFinalizedError(countID string) *Error {
	return &Error{
		Code:    ErrCodeAlreadyFinalized,
		Message: "count is already finalized",
		CountID: countID,
	}
}

// NewNotFoundError creates an Error for an unknown count.
func NewNotFoundError(countID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: "count not found",
		CountID: countID,
	}
}

// NewStorageError creates an Error wrapping a store failure.
func NewStorageError(countID, op string, err error) *Error {
	return &Error{
		Code:    ErrCodeStorageUnavailable,
		Message: op + " failed",
		CountID: countID,
		Err:     err,
	}
}

// storeError maps store sentinels onto engine codes.
func storeError(countID, op string, err error) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NewNotFoundError(countID)
	case errors.Is(err, store.ErrFinalized):
		return NewAlreadyFinalizedError(countID)
	case errors.Is(err, store.ErrExists):
		return &Error{
			Code:    ErrCodeExists,
			Message: "count already exists",
			CountID: countID,
		}
	default:
		return NewStorageError(countID, op, err)
	}
}
