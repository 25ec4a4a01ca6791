package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobEvent records one committed lifecycle transition of a job.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// JobID identifies the job that transitioned
	JobID string `json:"job_id"`

	// Status is the status the job entered
	Status string `json:"status"`

	// RunID is the pipeline run id, once one has been allocated
	RunID string `json:"run_id,omitempty"`

	// Cause is the machine-readable failure cause for failed jobs
	Cause string `json:"cause,omitempty"`

	// Message is the redacted failure description for failed jobs
	Message string `json:"message,omitempty"`

	// OccurredAt is the time of the transition
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobEvent creates a JobEvent for a transition of jobID into status.
func NewJobEvent(jobID, status string, occurredAt time.Time) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		JobID:      jobID,
		Status:     status,
		OccurredAt: occurredAt,
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *JobEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *JobEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
