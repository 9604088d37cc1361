// Package domain holds the error kinds shared by the aggregation engine, the
// schema loader and the HTTP and CLI adapters.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports a schema or other named resource that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError reports invalid caller input. Sections optionally groups
// the individual messages by the part of the input they concern, e.g.
// "dimensions" or "filters".
type ValidationError struct {
	Message  string
	Sections map[string][]string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a duplicate registration.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// WithSections returns a copy of e carrying per-section messages. Empty
// sections are dropped.
func (e *ValidationError) WithSections(sections map[string][]string) *ValidationError {
	out := &ValidationError{Message: e.Message}
	for name, msgs := range sections {
		if len(msgs) == 0 {
			continue
		}
		if out.Sections == nil {
			out.Sections = make(map[string][]string, len(sections))
		}
		out.Sections[name] = append([]string(nil), msgs...)
	}
	return out
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ValidationSections returns the per-section messages of the first
// ValidationError in err's chain, or nil.
func ValidationSections(err error) map[string][]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Sections
	}
	return nil
}
