package task

import (
	"context"

	"github.com/google/uuid"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Completer is implemented by tasks whose submitter waits for the outcome.
// The worker calls Complete exactly once, after Execute has returned or
// panicked.
type Completer interface {
	Complete(err error)
}

// Owned is implemented by tasks that run on behalf of another entity, such as
// a job.
type Owned interface {
	Owner() string
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue, waiting for free capacity until ctx
	// is done. Returns ErrQueueClosed once the queue has been closed.
	Enqueue(ctx context.Context, task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// FuncTask adapts a function to the Task interface and reports its outcome
// on Done.
type FuncTask struct {
	id       uuid.UUID
	taskType string
	owner    string
	fn       func(ctx context.Context) error
	done     chan error
}

// NewFuncTask creates a task running fn.
func NewFuncTask(taskType string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{
		id:       uuid.New(),
		taskType: taskType,
		fn:       fn,
		done:     make(chan error, 1),
	}
}

// ID returns the task's unique identifier
func (t *FuncTask) ID() uuid.UUID { return t.id }

// Type returns the task type identifier
func (t *FuncTask) Type() string { return t.taskType }

// WithOwner records the id of the entity t runs for and returns t.
func (t *FuncTask) WithOwner(owner string) *FuncTask {
	t.owner = owner
	return t
}

// Owner implements Owned.
func (t *FuncTask) Owner() string { return t.owner }

// Execute runs the wrapped function
func (t *FuncTask) Execute(ctx context.Context) error { return t.fn(ctx) }

// Complete implements Completer.
func (t *FuncTask) Complete(err error) { t.done <- err }

// Done receives the task's outcome once a worker has finished with it.
func (t *FuncTask) Done() <-chan error { return t.done }
