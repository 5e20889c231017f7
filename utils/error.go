package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is a bad-request class failure: the caller sent something
// the engine refuses to act on (empty source list, cancel after completion,
// resolving an already-resolved mismatch).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned for unknown run/mismatch ids.
type NotFoundError struct {
	Resource string
	Id       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
}

func NewNotFoundError(resource string, id uint) error {
	return &NotFoundError{Resource: resource, Id: id}
}

// ProcessingError wraps any failure inside the background pipeline
// (load, match, persist, summarize). It has no synchronous caller: it is
// captured into the run's error_message and logged, never re-raised.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func NewProcessingError(stage string, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrorRecordNotFound)
}
