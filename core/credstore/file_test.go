package credstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/core/credstore"
)

func TestFile_GetSetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	store, err := credstore.NewFile(dir)
	require.NoError(t, err)

	_, err = store.Get(ctx, "token")
	assert.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, "token", "abc"))
	require.NoError(t, store.Set(ctx, "user", `{"email":"a@b.com"}`))

	v, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, store.Delete(ctx, "token"))
	_, err = store.Get(ctx, "token")
	assert.ErrorIs(t, err, credstore.ErrNotFound)

	v, err = store.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.com"}`, v)
}

func TestFile_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	store, err := credstore.NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "token", "abc"))

	reopened, err := credstore.NewFile(dir)
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestFile_CorruptFileReadsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{not json"), 0o600))

	store, err := credstore.NewFile(dir)
	require.NoError(t, err)

	_, err = store.Get(ctx, "token")
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestFile_WatchObservesOtherInstance(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()

	observer, err := credstore.NewFile(dir)
	require.NoError(t, err)
	writer, err := credstore.NewFile(dir)
	require.NoError(t, err)

	changes, err := observer.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, "token", "abc"))

	change := collectChange(t, changes)
	assert.Equal(t, credstore.Change{Key: "token", Value: "abc", Present: true}, change)

	require.NoError(t, writer.Delete(ctx, "token"))

	change = collectChange(t, changes)
	assert.Equal(t, credstore.Change{Key: "token", Present: false}, change)
}

func TestFile_WatchDoesNotEchoOwnWrites(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	store, err := credstore.NewFile(dir)
	require.NoError(t, err)

	changes, err := store.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "token", "abc"))

	select {
	case change := <-changes:
		t.Fatalf("own write echoed back: %+v", change)
	case <-time.After(300 * time.Millisecond):
	}
}
