// Package events carries the change feed: every successful store mutation is
// published as a core.ChangeEvent. Publishing is best-effort from the store's
// point of view; a sink failure never fails the mutation that produced it.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/backroom-io/backroom/internal/core"
)

var (
	// ErrQueueClosed is returned when publishing to a closed sink.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueFull is returned when the in-memory buffer is exhausted.
	ErrQueueFull = errors.New("event queue is full")
)

// MemorySink buffers change events in a channel. It backs tests and
// single-process deployments that tail their own feed.
type MemorySink struct {
	queue  chan core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemorySink creates an in-memory sink buffering up to bufferSize events.
func NewMemorySink(bufferSize int) *MemorySink {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemorySink{queue: make(chan core.ChangeEvent, bufferSize)}
}

// Publish enqueues one event without blocking; a full buffer fails with
// ErrQueueFull rather than stalling the mutation path.
func (s *MemorySink) Publish(ctx context.Context, event core.ChangeEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrQueueClosed
	}
	s.mu.RUnlock()

	select {
	case s.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue drains up to batchSize buffered events without blocking.
func (s *MemorySink) Dequeue(ctx context.Context, batchSize int) ([]core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	events := make([]core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case event, ok := <-s.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (s *MemorySink) Size() int {
	return len(s.queue)
}

// Close closes the sink; further publishes fail with ErrQueueClosed.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.queue)
	return nil
}
