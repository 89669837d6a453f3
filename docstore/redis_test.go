package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStoreWithClient(client, "quill:")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestNewRedisStore_ConnectionError(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "localhost:1", Prefix: "quill:"})
	assert.Error(t, err)
}

func TestRedisStore_WriteAndRead(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	doc := map[string]any{IDKey: "d1", "__type__": "user", "name": "Ada"}
	require.NoError(t, store.Write(ctx, "users", doc))

	got, err := store.Read(ctx, "users", Filter{IDKey: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, "user", got["__type__"])
}

func TestRedisStore_ReadByFilter(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d1", "name": "Ada", "age": 36}))
	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d2", "name": "Grace", "age": 45}))

	got, err := store.Read(ctx, "users", Filter{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "d2", got[IDKey])

	// Numeric filters match across the JSON round trip
	got, err = store.Read(ctx, "users", Filter{"age": 36})
	require.NoError(t, err)
	assert.Equal(t, "d1", got[IDKey])

	_, err = store.Read(ctx, "users", Filter{"name": "Linus"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ReadMiss(t *testing.T) {
	store, _ := setupTestRedis(t)

	_, err := store.Read(context.Background(), "users", Filter{IDKey: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_WriteRequiresID(t *testing.T) {
	store, _ := setupTestRedis(t)

	err := store.Write(context.Background(), "users", map[string]any{"name": "Ada"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestRedisStore_ListLocations(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	locations, err := store.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locations)

	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d1"}))
	require.NoError(t, store.Write(ctx, "orders", map[string]any{IDKey: "d2"}))

	locations, err = store.ListLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, locations)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d1"}))
	require.NoError(t, store.Delete(ctx, "users", "d1"))

	_, err := store.Read(ctx, "users", Filter{IDKey: "d1"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "users", "d1"), ErrNotFound)
}

func TestRedisStore_Upsert(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d1", "name": "Ada"}))
	require.NoError(t, store.Write(ctx, "users", map[string]any{IDKey: "d1", "name": "Ada Lovelace"}))

	got, err := store.Read(ctx, "users", Filter{IDKey: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got["name"])
}
