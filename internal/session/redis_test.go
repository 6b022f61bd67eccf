package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/non4ik-sdk/palettron/internal/colour"
)

// setupRedisStore creates a test Redis store with miniredis
func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_TakeNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Take(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_InvalidInput(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, "", testPalette()), ErrInvalidID)
	assert.ErrorIs(t, store.Put(ctx, "chat-1", colour.NewPalette(nil)), ErrInvalidPalette)

	_, err := store.Take(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = store.Peek(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Clear(ctx, ""), ErrInvalidID)
}

func TestRedisStore_PutAndTake(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))
	assert.True(t, mr.Exists("palettron:session:chat-1"))

	got, err := store.Take(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(testPalette()))
	assert.False(t, mr.Exists("palettron:session:chat-1"))

	_, err = store.Take(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_PeekDoesNotConsume(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))

	got, err := store.Peek(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"#ff0000", "#000000"}, got.ToHex())

	_, err = store.Take(ctx, "chat-1")
	assert.NoError(t, err)
}

func TestRedisStore_Clear(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))
	require.NoError(t, store.Clear(ctx, "chat-1"))
	assert.False(t, mr.Exists("palettron:session:chat-1"))

	assert.NoError(t, store.Clear(ctx, "chat-1"))
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(10*time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))
	assert.Equal(t, 10*time.Minute, mr.TTL("palettron:session:chat-1"))

	mr.FastForward(11 * time.Minute)

	_, err := store.Take(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_NoTTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(0))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))
	assert.Equal(t, time.Duration(0), mr.TTL("palettron:session:chat-1"))
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("bot"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat-1", testPalette()))
	assert.True(t, mr.Exists("bot:session:chat-1"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("palettron:session:chat-1", "not json"))

	_, err := store.Peek(ctx, "chat-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.Put(ctx, "chat-1", testPalette()))
	assert.Error(t, store.Ping(ctx))

	_, err := store.Take(ctx, "chat-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
