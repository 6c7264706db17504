// Package apperrors provides sentinel and custom error types for the relevance engine.
// Each type matches any other instance of itself via errors.Is, so callers can branch on
// the category without caring about the message.
package apperrors

import "fmt"

// ErrNotFound represents a "not found" error.
// Use when a user or candidate referenced by an update no longer exists.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when an interaction signal or ranking option fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrProvider is the sentinel for embedding provider failures (error, timeout, open breaker).
var ErrProvider = &ProviderError{}

// ProviderError wraps a failure of the embedding provider.
// Op names the failed step: "embed", "timeout", "circuit_open", "rate_limit", "invalid_output".
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := "embedding provider"
	if e.Provider != "" {
		msg += " " + e.Provider
	}

	if e.Op != "" {
		msg += " " + e.Op
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg + " failed"
}

// Unwrap returns the underlying provider error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)

	return ok
}

// ErrDegenerateVector is the sentinel for vectors that cannot be stored.
var ErrDegenerateVector = &DegenerateVectorError{}

// DegenerateVectorError reports a blend with zero magnitude, a NaN or Inf component,
// or a dimension mismatch between the stored and the new vector.
type DegenerateVectorError struct {
	Message string
}

// NewDegenerateVectorError creates a DegenerateVectorError with a custom message.
func NewDegenerateVectorError(message string) *DegenerateVectorError {
	return &DegenerateVectorError{Message: message}
}

// Error implements the error interface.
func (e *DegenerateVectorError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "degenerate vector"
}

// Is implements the error interface for error comparison.
func (e *DegenerateVectorError) Is(target error) bool {
	_, ok := target.(*DegenerateVectorError)

	return ok
}

// ErrConflict is the sentinel for optimistic concurrency conflicts on interest writes.
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for write conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}
