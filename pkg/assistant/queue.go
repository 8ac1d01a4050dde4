package assistant

import (
	"context"
	"sync"

	"codeme/pkg/protocol"
)

// Queue is the unbounded FIFO between the intake sources and the
// processing loop. Push never blocks; Pop blocks until a command or
// cancellation. Commands from all sources interleave in arrival order.
type Queue struct {
	mu     sync.Mutex
	items  []protocol.Command
	popped uint64

	// signal wakes the single consumer. Capacity one: a stale wakeup
	// just re-checks the slice.
	signal chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends a command. Safe from any goroutine.
func (q *Queue) Push(cmd protocol.Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest command, blocking until one is
// available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (protocol.Command, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items = q.items[1:]
			q.popped++
			q.mu.Unlock()
			return cmd, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return protocol.Command{}, ctx.Err()
		}
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Popped returns how many commands have ever been handed to the
// consumer. Together with a processed count it tells whether a command
// is in flight.
func (q *Queue) Popped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popped
}
