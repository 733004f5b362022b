package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrModelParse          = "MODEL_PARSE_ERROR"
	ErrNotFound            = "NOT_FOUND"
	ErrPermissionDenied    = "PERMISSION_DENIED"
	ErrConditionEvaluation = "CONDITION_EVALUATION_ERROR"
	ErrTriggerExecution    = "TRIGGER_EXECUTION_ERROR"
	ErrEntityNotFound      = "ENTITY_NOT_FOUND"
	ErrValidation          = "VALIDATION_ERROR"
	ErrConflict            = "CONFLICT"
	ErrInternal            = "INTERNAL_ERROR"
)

// Error is the coded error envelope surfaced by the engine. Detail carries the
// offending name or expression so model authoring mistakes are diagnosable.
type Error struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Detail  string       `json:"detail,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
	cause   error
}

// FieldError describes a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error and returns the envelope.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// CodeOf returns the code of err if it is (or wraps) an *Error, else "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool { return CodeOf(err) == code }

// NewModelParseError reports a malformed or ambiguous model source. The
// offender names the document, entity type, or reference at fault.
func NewModelParseError(msg, offender string) *Error {
	return &Error{Code: ErrModelParse, Message: msg, Detail: offender}
}

// NewNotFoundError reports an unknown instance, entity type, or version key.
func NewNotFoundError(msg string) *Error {
	return &Error{Code: ErrNotFound, Message: msg}
}

// NewPermissionDeniedError reports that no matching allowed action exists.
func NewPermissionDeniedError(msg string) *Error {
	return &Error{Code: ErrPermissionDenied, Message: msg}
}

// NewConditionEvaluationError reports a malformed guard or role condition.
// Never coerced to false: a broken condition is a model authoring bug.
func NewConditionEvaluationError(msg, expression string) *Error {
	return &Error{Code: ErrConditionEvaluation, Message: msg, Detail: expression}
}

// NewTriggerExecutionError reports a failed trigger; the run is aborted and
// the caller must not persist the partially-mutated working copy.
func NewTriggerExecutionError(msg, trigger string) *Error {
	return &Error{Code: ErrTriggerExecution, Message: msg, Detail: trigger}
}

// NewEntityNotFoundError reports a step name absent from the instance's
// workflow definition.
func NewEntityNotFoundError(msg string) *Error {
	return &Error{Code: ErrEntityNotFound, Message: msg}
}

// NewValidationError reports field-level validation failures of submitted data.
func NewValidationError(fields []FieldError) *Error {
	return &Error{
		Code:    ErrValidation,
		Message: "one or more fields are invalid",
		Fields:  fields,
	}
}

// NewConflictError reports an optimistic-concurrency or uniqueness conflict.
func NewConflictError(msg string) *Error {
	return &Error{Code: ErrConflict, Message: msg}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *Error {
	return &Error{Code: ErrInternal, Message: "an unexpected error occurred", cause: err}
}
