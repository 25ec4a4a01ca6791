package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 5}, logger)
	assert.Equal(t, 5, pool.workerCount)
	assert.Nil(t, pool.errorHandler)

	// invalid worker counts fall back to 1
	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 0}, logger)
	assert.Equal(t, 1, pool.workerCount)
	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: -5}, logger)
	assert.Equal(t, 1, pool.workerCount)
}

func startPool(t *testing.T, workers int) (*TaskQueue, *WorkerPool) {
	t.Helper()
	logger := setupTestLogger()
	queue := NewTaskQueue(10, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: workers}, logger)
	return queue, pool
}

func waitDone(t *testing.T, task *FuncTask) error {
	t.Helper()
	select {
	case err := <-task.Done():
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task to complete")
		return nil
	}
}

func TestWorkerPool_ProcessTask_Success(t *testing.T) {
	queue, pool := startPool(t, 1)
	pool.Start()

	var ran atomic.Bool
	task := NewFuncTask("test", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	assert.NoError(t, waitDone(t, task))
	assert.True(t, ran.Load())

	queue.Close()
	assert.NoError(t, pool.Stop(context.Background()))
}

func TestWorkerPool_ProcessTask_Error(t *testing.T) {
	queue, pool := startPool(t, 1)

	handled := make(chan error, 1)
	pool.SetErrorHandler(func(task Task, err error) {
		handled <- err
	})
	pool.Start()

	expectedErr := errors.New("pipeline step failed")
	task := NewFuncTask("test", func(ctx context.Context) error { return expectedErr }).WithOwner("job-1")
	require.NoError(t, queue.Enqueue(context.Background(), task))

	assert.ErrorIs(t, waitDone(t, task), expectedErr)
	assert.ErrorIs(t, <-handled, expectedErr)
	assert.Equal(t, "job-1", task.Owner())

	queue.Close()
	assert.NoError(t, pool.Stop(context.Background()))
}

func TestWorkerPool_ProcessTask_Panic(t *testing.T) {
	queue, pool := startPool(t, 1)
	pool.Start()

	task := NewFuncTask("test", func(ctx context.Context) error {
		panic("test panic")
	})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	err := waitDone(t, task)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "test panic", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Contains(t, err.Error(), "panic")

	// the worker survives and keeps processing
	next := NewFuncTask("test", noop)
	require.NoError(t, queue.Enqueue(context.Background(), next))
	assert.NoError(t, waitDone(t, next))

	queue.Close()
	assert.NoError(t, pool.Stop(context.Background()))
}

func TestWorkerPool_RunsConcurrently(t *testing.T) {
	queue, pool := startPool(t, 2)
	pool.Start()

	release := make(chan struct{})
	var running atomic.Int32
	var peak atomic.Int32

	block := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}

	a := NewFuncTask("test", block)
	b := NewFuncTask("test", block)
	require.NoError(t, queue.Enqueue(context.Background(), a))
	require.NoError(t, queue.Enqueue(context.Background(), b))

	assert.Eventually(t, func() bool { return peak.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	assert.NoError(t, waitDone(t, a))
	assert.NoError(t, waitDone(t, b))

	queue.Close()
	assert.NoError(t, pool.Stop(context.Background()))
}

func TestWorkerPool_StopDrainsWithoutCancelling(t *testing.T) {
	queue, pool := startPool(t, 1)
	pool.Start()

	started := make(chan struct{})
	allowFinish := make(chan struct{})
	var sawCancel atomic.Bool

	running := NewFuncTask("test", func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
		case <-allowFinish:
		}
		return nil
	})
	queued := NewFuncTask("test", noop)
	require.NoError(t, queue.Enqueue(context.Background(), running))
	require.NoError(t, queue.Enqueue(context.Background(), queued))
	<-started

	queue.Close()

	// a short deadline expires while the task is still running
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Stop(ctx))

	close(allowFinish)
	assert.NoError(t, pool.Stop(context.Background()))
	assert.False(t, sawCancel.Load())
	assert.NoError(t, waitDone(t, queued), "tasks queued before close still run")
}
