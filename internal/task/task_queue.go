package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
)

// TaskQueue implements a buffered FIFO task queue that satisfies both
// TaskQueueReader and TaskQueueWriter interfaces
type TaskQueue struct {
	tasks  chan Task
	closed chan struct{}
	once   sync.Once
	// senders hold the read lock while blocked on the channel; Close takes
	// the write lock before closing it so no send can race the close.
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size < 0 {
		size = 0
	}
	return &TaskQueue{
		tasks:  make(chan Task, size),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// Enqueue adds a task to the queue for processing. When the buffer is full it
// waits until a worker frees a slot, ctx is done, or the queue is closed.
func (q *TaskQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the task queue, preventing further task submission.
// Tasks already buffered are still delivered to readers.
func (q *TaskQueue) Close() {
	q.once.Do(func() {
		close(q.closed)
		q.mu.Lock()
		close(q.tasks)
		q.mu.Unlock()
		q.logger.Info("task queue closed")
	})
}

// GetChannel returns a read-only channel for consuming tasks
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}
