// Package errors provides standardized error types for use across the bot service.
//
// ContextualError is the base error type that captures component, operation, and
// optional status code and details. It implements the error and Unwrap interfaces
// for seamless integration with Go's errors package.
//
// Usage:
//
//	err := errors.New("bot", "NewMainDialog", errors.ErrMissingDependency)
//	err = err.WithDetails(map[string]any{"parameter": "recognizer"})
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingDependency marks a constructor that was handed a nil collaborator.
// It is a startup-time condition and is never recovered at runtime.
var ErrMissingDependency = stderrors.New("missing required dependency")

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred.
type ContextualError struct {
	// Component identifies the module that produced the error (e.g. "bot", "dialog", "server").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or application-level status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// MissingDependency builds the construction-time error for a nil parameter.
func MissingDependency(component, operation, parameter string) *ContextualError {
	return New(component, operation,
		fmt.Errorf("%w: parameter %q is required", ErrMissingDependency, parameter)).
		WithDetails(map[string]any{"parameter": parameter})
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// DetailString renders Details as sorted key=value pairs for log lines.
func (e *ContextualError) DetailString() string {
	if len(e.Details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return strings.Join(parts, " ")
}

// StatusCode extracts the status code from the first ContextualError in the chain.
// It returns fallback when none carries a code.
func StatusCode(err error, fallback int) int {
	var ce *ContextualError
	if stderrors.As(err, &ce) && ce.StatusCode != 0 {
		return ce.StatusCode
	}
	return fallback
}
