package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the coordination layer. Callers classify outcomes
// with errors.Is against these values.

var (
	// ErrNotFound indicates an unknown batch or record id
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidTransition indicates an illegal lifecycle move (e.g. out of a terminal state)
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrAlreadyFinalized indicates a re-submission onto a terminal agent result
	ErrAlreadyFinalized = errors.New("agent result already finalized")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates a misconfiguration (unknown agent type, empty required set)
	ErrConfiguration = errors.New("configuration error")

	// ErrUnavailable indicates a transient storage failure; callers may retry with backoff
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// IsRetryable reports whether the caller should retry the operation with
// backoff. Lifecycle violations and not-found conditions are final; only
// transient infrastructure failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// MultiError accumulates errors from independent agents for a single batch.
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	parts := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("multiple errors (%d): %s", len(m.Errors), strings.Join(parts, "; "))
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
