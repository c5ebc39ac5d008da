package broadcast

import (
	"context"
	"errors"
)

var (
	// ErrBroadcasterClosed is returned when broadcasting on a closed broadcaster.
	ErrBroadcasterClosed = errors.New("broadcaster is closed")

	// ErrSubscriberClosed is returned when receiving on a closed subscriber.
	ErrSubscriberClosed = errors.New("subscriber is closed")
)

// Message wraps broadcast payloads for type-safe delivery.
type Message[T any] struct {
	Data T
}

// Broadcaster sends messages to all active subscribers.
// Implementations must be safe for concurrent use.
type Broadcaster[T any] interface {
	// Broadcast delivers the message to every active subscriber.
	// Delivery is best-effort: slow subscribers may miss messages.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Subscribe registers a new subscriber. The subscription is cleaned up
	// automatically when ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context) Subscriber[T]

	// Close shuts down the broadcaster and all its subscribers.
	Close() error
}

// Subscriber receives broadcast messages.
type Subscriber[T any] interface {
	// Receive returns the channel emitting broadcast messages.
	// The channel is closed when the subscriber or broadcaster closes.
	Receive(ctx context.Context) <-chan Message[T]

	// Close unregisters the subscriber and closes its channel.
	Close() error
}
