package pipeline

import (
	"errors"
	"fmt"
)

// Cause classifies why a run failed.
type Cause string

// Failure causes.
const (
	// CauseConfig: the configuration could not be loaded or is incomplete.
	CauseConfig Cause = "config"
	// CausePipeline: a pipeline step returned an error.
	CausePipeline Cause = "pipeline"
	// CauseFilesystem: the run directory or one of its files could not be written.
	CauseFilesystem Cause = "filesystem"
	// CausePanic: the pipeline panicked.
	CausePanic Cause = "panic"
	// CauseQueue: the run could not be handed to a worker.
	CauseQueue Cause = "queue"
)

// Error is a structured run failure: a machine-readable cause plus the
// original diagnostic text.
type Error struct {
	Cause   Cause
	Message string
	Err     error
}

// NewError wraps err with cause. The message is taken from err.
func NewError(cause Cause, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Cause: cause, Message: msg, Err: err}
}

// Errorf creates an Error with a formatted message.
func Errorf(cause Cause, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Cause: cause, Message: err.Error(), Err: errors.Unwrap(err)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns err as an *Error, classifying unknown errors with def.
func AsError(err error, def Cause) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(def, err)
}
