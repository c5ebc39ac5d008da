package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster is a Broadcaster backed by a Redis pub/sub channel, letting
// subscribers in separate processes (or hosts) observe the same messages.
// Payloads are JSON-encoded, so T must be JSON-serializable.
//
// The broadcaster does not own the Redis client; closing the broadcaster
// leaves the client open.
type RedisBroadcaster[T any] struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// RedisBroadcasterOption configures a RedisBroadcaster.
type RedisBroadcasterOption func(*redisBroadcasterConfig)

type redisBroadcasterConfig struct {
	logger *slog.Logger
}

// WithRedisLogger configures structured logging for the broadcaster.
// Receive-loop decode failures are logged at warn level and skipped.
func WithRedisLogger(logger *slog.Logger) RedisBroadcasterOption {
	return func(c *redisBroadcasterConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisBroadcaster creates a broadcaster publishing on the named channel.
func NewRedisBroadcaster[T any](client redis.UniversalClient, channel string, opts ...RedisBroadcasterOption) *RedisBroadcaster[T] {
	cfg := &redisBroadcasterConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisBroadcaster[T]{
		client:  client,
		channel: channel,
		logger:  cfg.logger,
	}
}

// Broadcast publishes msg as JSON on the Redis channel.
func (b *RedisBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBroadcasterClosed
	}

	payload, err := json.Marshal(msg.Data)
	if err != nil {
		return errors.Join(errors.New("broadcast: failed to encode message"), err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe opens a Redis subscription on the broadcaster's channel and
// forwards decoded messages until ctx is cancelled or the subscriber closes.
func (b *RedisBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	pubsub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Message[T], DefaultBufferSize)

	sub := &redisSubscriber[T]{pubsub: pubsub, ch: out}

	go func() {
		defer close(out)
		src := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case m, ok := <-src:
				if !ok {
					return
				}
				var data T
				if err := json.Unmarshal([]byte(m.Payload), &data); err != nil {
					b.logger.WarnContext(ctx, "broadcast: dropping undecodable message",
						slog.String("channel", b.channel),
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- Message[T]{Data: data}:
				default: // subscriber buffer full, drop
				}
			}
		}
	}()

	return sub
}

// Close marks the broadcaster closed. Existing subscriptions keep their Redis
// connections until their contexts end or they are closed individually.
func (b *RedisBroadcaster[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBroadcasterClosed
	}
	b.closed = true
	return nil
}

type redisSubscriber[T any] struct {
	pubsub *redis.PubSub
	ch     chan Message[T]
	once   sync.Once
}

// Receive returns the subscriber's message channel.
func (s *redisSubscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

// Close terminates the Redis subscription. The message channel closes once
// the forwarding goroutine drains.
func (s *redisSubscriber[T]) Close() error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
