package job

import "errors"

// Sentinel errors returned by the job package. The API layer maps them to
// status codes.
var (
	// ErrNotFound indicates an unknown job id, or an artifact that does not
	// exist inside the job's run directory.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed submission input.
	ErrValidation = errors.New("invalid job request")

	// ErrConfigNotFound indicates the submitted config path does not name an
	// existing file. It matches both ErrNotFound and ErrValidation.
	ErrConfigNotFound = &configNotFoundError{}

	// ErrInvalidTransition indicates an update that would move a job backward,
	// skip a state, or modify a terminal or immutable field.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrDuplicateID indicates an insert of an id that is already registered.
	ErrDuplicateID = errors.New("duplicate job id")
)

type configNotFoundError struct{}

func (*configNotFoundError) Error() string { return "config file not found" }

func (*configNotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrValidation
}
