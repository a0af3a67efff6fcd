package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore_StartCurrentEnd(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Hour)
	ctx := context.Background()

	got, err := store.Current(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Start(ctx, "sid-1", laztopaz))
	got, err = store.Current(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, laztopaz, *got)

	require.NoError(t, store.End(ctx, "sid-1"))
	got, err = store.Current(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionStore_StartOverwrites(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Hour)
	ctx := context.Background()
	kuti := Identity{ID: 2, Username: "kuti", Email: "kuti@example.com"}

	require.NoError(t, store.Start(ctx, "sid", laztopaz))
	require.NoError(t, store.Start(ctx, "sid", kuti))

	got, err := store.Current(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, kuti, *got)
}

func TestRedisSessionStore_EndedSidCannotBeReused(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, "sid", laztopaz))
	require.NoError(t, store.End(ctx, "sid"))

	err := store.Start(ctx, "sid", laztopaz)
	assert.ErrorIs(t, err, ErrSessionEnded)

	got, err := store.Current(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionStore_SessionsAreIsolated(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, "a", laztopaz))
	require.NoError(t, store.Start(ctx, "b", laztopaz))
	require.NoError(t, store.End(ctx, "a"))

	got, err := store.Current(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisSessionStore_Expires(t *testing.T) {
	store, mr := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, "sid", laztopaz))
	mr.FastForward(2 * time.Minute)

	got, err := store.Current(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionStore_EmptySid(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Hour)
	ctx := context.Background()

	assert.Error(t, store.Start(ctx, "", laztopaz))
	got, err := store.Current(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, store.End(ctx, ""))
}

func TestRedisSessionStore_CorruptValue(t *testing.T) {
	store, mr := newTestSessionStore(t, time.Hour)

	require.NoError(t, mr.Set(sessionKeyPrefix+"sid", "{not json"))
	_, err := store.Current(context.Background(), "sid")
	assert.Error(t, err)
}
