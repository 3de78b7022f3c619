package attendance

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// DuplicateIDError reports an identifier that already exists in a collection.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

// IOError wraps a storage fault. The operation is not retried.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// ErrInvalidCredentials is returned for unknown ids and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrValidation creates a ValidationError for field.
func ErrValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Outcome is the adapter-facing classification of an operation result.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeValidation         Outcome = "validation_error"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeIOFailure          Outcome = "io_failure"
)

// OutcomeOf classifies err. Anything unrecognised is an io_failure.
func OutcomeOf(err error) Outcome {
	var validation *ValidationError
	var duplicate *DuplicateIDError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &validation):
		return OutcomeValidation
	case errors.As(err, &duplicate):
		return OutcomeDuplicate
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	default:
		return OutcomeIOFailure
	}
}
