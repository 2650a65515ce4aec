package stepline

import (
	"errors"
	"fmt"
)

// SetupError represents an operational error that should lead to exit code 2
// Examples include configuration errors, an unresolvable recipe, etc.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *SetupError) Unwrap() error {
	return e.Err
}

// NewSetupError creates a new SetupError
func NewSetupError(err error) *SetupError {
	return &SetupError{Err: err}
}

// IsSetupError checks if the error is or wraps a SetupError
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return err != nil && errors.As(err, &setupErr)
}

// StepFailureError represents a failure from executed steps (exit code 1)
type StepFailureError struct {
	Message string
}

func (e *StepFailureError) Error() string {
	return fmt.Sprintf("step failure: %s", e.Message)
}

// NewStepFailureError creates a new StepFailureError
func NewStepFailureError(message string) *StepFailureError {
	return &StepFailureError{Message: message}
}

// IsStepFailureError checks if the error is or wraps a StepFailureError
func IsStepFailureError(err error) bool {
	var stepErr *StepFailureError
	return err != nil && errors.As(err, &stepErr)
}
