package broadcast

import (
	"context"
	"sync"
)

// DefaultBufferSize is the per-subscriber channel buffer used when the
// requested size is not positive.
const DefaultBufferSize = 100

// MemoryBroadcaster is an in-memory, in-process Broadcaster implementation.
//
// Delivery is non-blocking: if a subscriber's buffer is full the message is
// dropped for that subscriber rather than blocking the broadcast, so a slow
// consumer cannot stall the others.
type MemoryBroadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[*memorySubscriber[T]]struct{}
	buffer int
	closed bool
}

// NewMemoryBroadcaster creates an in-memory broadcaster with the given
// per-subscriber buffer size.
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryBroadcaster[T]{
		subs:   make(map[*memorySubscriber[T]]struct{}),
		buffer: bufferSize,
	}
}

// Broadcast delivers msg to every active subscriber without blocking.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBroadcasterClosed
	}

	for sub := range b.subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.ch <- msg:
		default: // subscriber buffer full, drop for this subscriber
		}
	}
	return nil
}

// Subscribe registers a subscriber that is removed automatically when ctx is
// cancelled.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &memorySubscriber[T]{
		parent: b,
		ch:     make(chan Message[T], b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		sub.closed = true
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBroadcasterClosed
	}
	b.closed = true
	for sub := range b.subs {
		sub.closed = true
		close(sub.ch)
		delete(b.subs, sub)
	}
	return nil
}

type memorySubscriber[T any] struct {
	parent *MemoryBroadcaster[T]
	ch     chan Message[T]
	closed bool // guarded by parent.mu
}

// Receive returns the subscriber's message channel.
func (s *memorySubscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

// Close unregisters the subscriber from its broadcaster and closes the
// channel. Safe to call multiple times.
func (s *memorySubscriber[T]) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.parent.subs, s)
	close(s.ch)
	return nil
}
