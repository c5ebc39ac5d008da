package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis strings under a key prefix. Mutations are
// announced on a pub/sub channel ("<prefix>:changes"), which Watch consumes,
// so store instances in separate processes observe each other's writes.
//
// Note that a Redis store's own writes are echoed back to its own Watch
// channel; consumers must apply changes idempotently.
type Redis struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisStoreLogger configures structured logging for watch-loop failures.
func WithRedisStoreLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis creates a Redis-backed store using the given key prefix.
func NewRedis(client redis.UniversalClient, prefix string, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: prefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the value for key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set writes the value for key and announces the change.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+":"+key, value, 0).Err(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	r.announce(ctx, Change{Key: key, Value: value, Present: true})
	return nil
}

// Delete removes the given keys, announcing each key that existed.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		n, err := r.client.Del(ctx, r.prefix+":"+key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			r.announce(ctx, Change{Key: key, Present: false})
		}
	}
	return nil
}

// Watch subscribes to the store's change channel and emits decoded changes
// until ctx is cancelled.
func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	pubsub := r.client.Subscribe(ctx, r.changeChannel())
	out := make(chan Change, watchBuffer)

	go func() {
		defer close(out)
		defer pubsub.Close()

		src := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					r.logger.WarnContext(ctx, "credstore: dropping undecodable change notification",
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- change:
				default: // watcher buffer full, drop
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) changeChannel() string {
	return r.prefix + ":changes"
}

// announce publishes the change notification. Failures are logged and
// swallowed: the write itself succeeded, and the storage-observation path is
// best-effort by design.
func (r *Redis) announce(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.changeChannel(), payload).Err(); err != nil {
		r.logger.WarnContext(ctx, "credstore: failed to announce change",
			slog.String("key", change.Key),
			slog.String("error", err.Error()))
	}
}
