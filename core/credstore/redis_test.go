package credstore_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/core/credstore"
)

func newRedisStoresForTest(t *testing.T) (*credstore.Redis, *credstore.Redis) {
	t.Helper()

	server := miniredis.RunT(t)
	newClient := func() redis.UniversalClient {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}
	return credstore.NewRedis(newClient(), "auth"), credstore.NewRedis(newClient(), "auth")
}

func TestRedis_GetSetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newRedisStoresForTest(t)

	_, err := store.Get(ctx, "token")
	assert.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, "token", "abc"))

	v, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, store.Delete(ctx, "token", "missing"))

	_, err = store.Get(ctx, "token")
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestRedis_WatchObservesOtherInstance(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer, writer := newRedisStoresForTest(t)

	changes, err := observer.Watch(ctx)
	require.NoError(t, err)

	// Retry the write until the subscription is established and the change
	// comes through; pub/sub has no delivery guarantee for early publishes.
	var change credstore.Change
	require.Eventually(t, func() bool {
		require.NoError(t, writer.Set(ctx, "token", "abc"))
		select {
		case c, ok := <-changes:
			if !ok {
				return false
			}
			change = c
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, credstore.Change{Key: "token", Value: "abc", Present: true}, change)

	require.NoError(t, writer.Delete(ctx, "token"))
	change = collectChange(t, changes)
	assert.Equal(t, credstore.Change{Key: "token", Present: false}, change)
}

func TestRedis_WatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	store, _ := newRedisStoresForTest(t)

	changes, err := store.Watch(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancellation")
	}
}
