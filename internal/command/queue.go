package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueClosed indicates the queue no longer accepts commands.
	ErrQueueClosed = errors.New("command queue is closed")
	// ErrQueueFull indicates a non-blocking push found no free slot.
	ErrQueueFull = errors.New("command queue is full")
)

const defaultRetryInterval = 100 * time.Millisecond

// Queue is a bounded FIFO of commands between ingestion and the engine.
// Params: capacity and the re-check interval used by blocking pushes.
// Returns: queue safe for concurrent producers and one consumer.
type Queue struct {
	items     chan Command
	retry     time.Duration
	closed    chan struct{}
	closeOnce sync.Once
	fullWaits atomic.Uint64
	pushed    atomic.Uint64
}

// NewQueue creates bounded queue.
// Params: capacity (min 1) and blocking push re-check interval (<=0 selects 100ms).
// Returns: queue.
func NewQueue(capacity int, retry time.Duration) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	return &Queue{
		items:  make(chan Command, capacity),
		retry:  retry,
		closed: make(chan struct{}),
	}
}

// Push enqueues command, waiting while the queue is full.
// Params: context bounding the wait and command.
// Returns: nil, ctx error, or ErrQueueClosed. Commands are never dropped silently.
func (q *Queue) Push(ctx context.Context, cmd Command) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	select {
	case q.items <- cmd:
		q.pushed.Add(1)
		return nil
	default:
	}

	q.fullWaits.Add(1)
	timer := time.NewTimer(q.retry)
	defer timer.Stop()
	for {
		select {
		case q.items <- cmd:
			q.pushed.Add(1)
			return nil
		case <-q.closed:
			return ErrQueueClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(q.retry)
		}
	}
}

// TryPush enqueues command without waiting.
// Params: command.
// Returns: nil, ErrQueueFull, or ErrQueueClosed.
func (q *Queue) TryPush(cmd Command) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	select {
	case q.items <- cmd:
		q.pushed.Add(1)
		return nil
	default:
		q.fullWaits.Add(1)
		return ErrQueueFull
	}
}

// C exposes the receive side for the consumer loop.
func (q *Queue) C() <-chan Command {
	return q.items
}

// Len returns the number of buffered commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Full reports whether a push would have to wait.
func (q *Queue) Full() bool {
	return len(q.items) == cap(q.items)
}

// FullWaits returns how many pushes found the queue full.
func (q *Queue) FullWaits() uint64 {
	return q.fullWaits.Load()
}

// Pushed returns how many commands were accepted.
func (q *Queue) Pushed() uint64 {
	return q.pushed.Load()
}

// Close stops accepting commands; buffered commands stay readable via C.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *Queue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
