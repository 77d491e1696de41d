package models

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is returned when a model id is unknown to the registry
var ErrModelNotFound = errors.New("model not found")

// ErrExecutionNotFound is returned when polling an unknown execution id
var ErrExecutionNotFound = errors.New("execution not found")

// ValidationError reports a malformed request. It is raised before any
// interpreter process is spawned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a request field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
