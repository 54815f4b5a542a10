// Package errors provides the custom error types used across the filermap
// engine. The types encode the run-level failure taxonomy: transient errors
// are retried with backoff, integrity errors quarantine the affected record
// while the run continues, and fatal errors abort the run with no partial
// commit.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the filermap engine
var (
	// ErrNotFound indicates that a requested blob or record was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates an optimistic-concurrency revision conflict
	ErrConflict = errors.New("revision conflict")

	// ErrTransient indicates a retryable condition (rate limit, transient
	// server error, timeout, revision conflict)
	ErrTransient = errors.New("transient failure")

	// ErrIntegrity indicates a data-integrity failure on a single record
	ErrIntegrity = errors.New("data integrity failure")

	// ErrFatal indicates a configuration or authentication failure that
	// aborts the run immediately
	ErrFatal = errors.New("fatal failure")

	// ErrRateLimited indicates that a source rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrLeaseHeld indicates that another merger holds the run lease
	ErrLeaseHeld = errors.New("run lease held")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")
)

// NotFoundError represents an error when a blob or record is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure on a record field
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConflictError represents an optimistic-concurrency failure from the
// repository: the expected revision no longer matches the stored one.
// The caller must re-read current state and retry the whole merge.
type ConflictError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("revision conflict at %s: expected %q, found %q", e.Path, e.Expected, e.Actual)
	}
	return fmt.Sprintf("revision conflict: expected %q, found %q", e.Expected, e.Actual)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict || target == ErrTransient
}

// NewConflictError creates a new ConflictError
func NewConflictError(path, expected, actual string) *ConflictError {
	return &ConflictError{Path: path, Expected: expected, Actual: actual}
}

// TransientError wraps a retryable failure from a source or the repository
type TransientError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure during %s (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transient failure during %s: %s", e.Op, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransientError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrTransient || target == ErrRateLimited
	}
	return target == ErrTransient
}

// NewTransientError creates a new TransientError
func NewTransientError(op string, statusCode int, message string) *TransientError {
	return &TransientError{Op: op, StatusCode: statusCode, Message: message}
}

// IntegrityError represents a data-integrity failure for a single record.
// The record is quarantined to the pending bucket and the run continues.
type IntegrityError struct {
	Record string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *IntegrityError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("integrity failure for %s: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("integrity failure: %s", e.Reason)
}

// Unwrap implements errors.Unwrap
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(record, reason string) *IntegrityError {
	return &IntegrityError{Record: record, Reason: reason}
}

// FatalError represents an authentication or configuration failure that
// aborts the run with no partial commit.
type FatalError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *FatalError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("fatal failure in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("fatal failure: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// NewFatalError creates a new FatalError
func NewFatalError(component, message string, err error) *FatalError {
	return &FatalError{Component: component, Message: message, Err: err}
}

// APIError represents an error response from an external source API
type APIError struct {
	Source     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited || target == ErrTransient
	}
	if e.StatusCode >= 500 {
		return target == ErrTransient
	}
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return target == ErrFatal
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(source string, statusCode int, message string) *APIError {
	return &APIError{Source: source, StatusCode: statusCode, Message: message}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "parquet", "csv"
	Subject string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is an optimistic-concurrency conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransient reports whether the error should be retried with backoff
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsIntegrity reports whether the error quarantines a record without
// failing the run
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsFatal reports whether the error aborts the run immediately
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Message: err.Error(), Err: err}
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Subject: subject, Message: err.Error(), Err: err}
}
