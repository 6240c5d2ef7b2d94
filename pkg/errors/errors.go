// Package errors provides custom error types for the partsync system.
// These errors enable programmatic error checking across the pipeline:
// transient supplier failures are retried, permanent ones exclude the
// supplier for the item, and ambiguity is surfaced instead of guessed.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are aliases for the standard library equivalents.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the partsync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that a supplier API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrAmbiguousMatch indicates the catalog matcher found more than one
	// equally strong candidate and refuses to pick one
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrNoUsableData indicates that no supplier returned a usable candidate
	ErrNoUsableData = errors.New("no usable supplier data")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")
)

// AdapterError represents a failure of one supplier adapter. Transient
// errors (rate limit, timeout, 5xx) are retryable with backoff; permanent
// errors exclude the supplier for the current item.
type AdapterError struct {
	Supplier   string
	Endpoint   string
	StatusCode int
	Transient  bool
	Message    string
	Err        error
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s adapter error from %s (status %d): %s", kind, e.Supplier, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s adapter error from %s: %s", kind, e.Supplier, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AdapterError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrTimeout:
		return errors.Is(e.Err, ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
	}
	return false
}

// NewAdapterError creates a new AdapterError, classifying transience from
// the HTTP status code when one is available.
func NewAdapterError(supplier string, statusCode int, message string, err error) *AdapterError {
	return &AdapterError{
		Supplier:   supplier,
		StatusCode: statusCode,
		Transient:  statusCode == 429 || statusCode >= 500,
		Message:    message,
		Err:        err,
	}
}

// NormalizationError represents a structurally invalid supplier candidate.
// The candidate is discarded; the item continues with the remaining ones.
type NormalizationError struct {
	Supplier string
	SKU      string
	Field    string
	Message  string
}

// Error implements the error interface
func (e *NormalizationError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("cannot normalize %s candidate %s: %s %s", e.Supplier, e.SKU, e.Field, e.Message)
	}
	return fmt.Sprintf("cannot normalize %s candidate: %s %s", e.Supplier, e.Field, e.Message)
}

// Is implements errors.Is support
func (e *NormalizationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AmbiguousMatchError reports equally strong catalog candidates for one
// canonical part. It is never auto-resolved.
type AmbiguousMatchError struct {
	Key        string
	Candidates []string
}

// Error implements the error interface
func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous catalog match for %s: %v", e.Key, e.Candidates)
}

// Is implements errors.Is support
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// MutationError represents a target catalog rejection of one operation in
// a reconciliation plan. OpIndex points at the failing operation so the
// failed subset can be re-run.
type MutationError struct {
	OpIndex   int
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation %d (%s) rejected: %s", e.OpIndex, e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *MutationError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "html"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents an authentication failure against a
// supplier or the target catalog.
type AuthenticationError struct {
	Service string
	Method  string // "api_key", "oauth", "token"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Service, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyRequired
}

// Helper functions for error checking

// IsTransient reports whether an adapter error is worth retrying.
func IsTransient(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguous checks if an error is an ambiguous match error
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// Helper wrapping functions for common patterns

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}

// WrapMutation wraps an error as a MutationError
func WrapMutation(opIndex int, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &MutationError{OpIndex: opIndex, Operation: operation, Message: err.Error(), Err: err}
}
