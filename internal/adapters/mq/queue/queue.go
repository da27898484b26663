// Package queue hands player tasks from the pipeline controller to pool workers.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/metrics"
)

const defaultQueueCapacity = 64

// Task is the payload flowing through the queue.
type Task = model.PlayerTask

// Queue is a bounded FIFO of player tasks.
type Queue interface {
	// Put adds a task, waiting for space until ctx ends.
	Put(ctx context.Context, t Task) error
	// Dequeue returns the receive side. It is closed by Close once drained.
	Dequeue() <-chan Task
	// Len reports how many tasks are buffered.
	Len() int
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)
	return q
}

// Put blocks until t is accepted, the queue is closed, or ctx ends.
func (q *InMemoryQueue) Put(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue %s: %w", t.PlayerID, ctx.Err())
	}
}

// Dequeue returns the task channel.
func (q *InMemoryQueue) Dequeue() <-chan Task {
	return q.tasks
}

// Len returns the number of buffered tasks.
func (q *InMemoryQueue) Len() int {
	return len(q.tasks)
}

// Close stops accepting tasks. Buffered tasks remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}
