// Package errors provides structured error handling with context propagation and process exit code mapping.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for logging and exit code selection.
type ErrorType string

const (
	// TypeValidation indicates invalid configuration or input (exit code 2)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates an unknown round (exit code 3)
	TypeNotFound ErrorType = "not_found"
	// TypeInternal indicates an unexpected failure (exit code 1)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error type.
func (e *Error) ExitCode() int {
	switch e.Type {
	case TypeValidation:
		return 2
	case TypeNotFound:
		return 3
	default:
		return 1
	}
}

// ValidationError creates a new validation error wrapping cause.
// cause may be nil.
func ValidationError(message string, cause error) *Error {
	return &Error{
		Type:    TypeValidation,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NotFoundError creates a new not-found error wrapping cause.
func NotFoundError(message string, cause error) *Error {
	return &Error{
		Type:    TypeNotFound,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// InternalError creates a new internal error.
func InternalError(message string, cause error) *Error {
	return &Error{
		Type:    TypeInternal,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithField is an alias for WithContext (chainable).
func (e *Error) WithField(key string, value any) *Error {
	return e.WithContext(key, value)
}

// LogAttrs flattens the error into slog key/value pairs.
func (e *Error) LogAttrs() []any {
	attrs := make([]any, 0, 4+2*len(e.Context))
	attrs = append(attrs, "error_type", string(e.Type), "error", e.Error())
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("unexpected error", err)
}
