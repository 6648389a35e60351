package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
	ErrAITooManyTasks         = errors.New("AI generated too many tasks")
)

const (
	msgRequired  = "This field is required."
	msgBlank     = "This field may not be blank."
	msgPastDue   = "Due date cannot be in the past."
	msgBadChoice = "Not a valid choice."
	msgTooLong   = "Ensure this field has no more characters than allowed."
	msgTooShort  = "Ensure this field has enough characters."
)

// ValidationError reports every invalid input field with human readable messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + strings.Join(e.Fields[name], " ")
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Err returns e when any field was recorded and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}
