// Package apperr defines the error kinds shared by the engines, the services
// and the transport. Callers classify errors with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrValidationFailed = errors.New("validation failed")
	ErrTransient        = errors.New("transient failure")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func InvalidInput(format string, args ...any) error {
	return wrap(ErrInvalidInput, format, args...)
}

func Transient(format string, args ...any) error {
	return wrap(ErrTransient, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// FieldError is a single per-question validation failure.
type FieldError struct {
	QuestionID string `json:"questionId"`
	Message    string `json:"message"`
}

// ValidationError carries every failure found in an assessment response.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrValidationFailed.Error())
	for i, fe := range e.Errors {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(fe.QuestionID)
		sb.WriteString(": ")
		sb.WriteString(fe.Message)
	}
	return sb.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// Retryable reports whether a caller may retry the operation as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
