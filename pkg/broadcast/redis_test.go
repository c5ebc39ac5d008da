package broadcast_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/pkg/broadcast"
)

type notice struct {
	Kind string `json:"kind"`
	Body string `json:"body"`
}

func newRedisClientForTest(t *testing.T) redis.UniversalClient {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestRedisBroadcaster_RoundTrip(t *testing.T) {
	t.Parallel()

	client := newRedisClientForTest(t)
	b := broadcast.NewRedisBroadcaster[notice](client, "test:notices")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)
	defer sub.Close()

	// Publishing before the subscription is fully established can lose the
	// message with real pub/sub semantics, so retry until received.
	var got notice
	require.Eventually(t, func() bool {
		err := b.Broadcast(ctx, broadcast.Message[notice]{Data: notice{Kind: "login", Body: "a@b.com"}})
		if err != nil {
			return false
		}
		select {
		case msg, ok := <-sub.Receive(ctx):
			if !ok {
				return false
			}
			got = msg.Data
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "login", got.Kind)
	assert.Equal(t, "a@b.com", got.Body)
}

func TestRedisBroadcaster_Close(t *testing.T) {
	t.Parallel()

	client := newRedisClientForTest(t)
	b := broadcast.NewRedisBroadcaster[notice](client, "test:closed")

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Close(), broadcast.ErrBroadcasterClosed)

	err := b.Broadcast(context.Background(), broadcast.Message[notice]{Data: notice{}})
	assert.ErrorIs(t, err, broadcast.ErrBroadcasterClosed)
}

func TestRedisBroadcaster_SubscriberClose(t *testing.T) {
	t.Parallel()

	client := newRedisClientForTest(t)
	b := broadcast.NewRedisBroadcaster[notice](client, "test:subclose")
	defer b.Close()

	sub := b.Subscribe(context.Background())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close()) // idempotent

	select {
	case _, ok := <-sub.Receive(context.Background()):
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
}
