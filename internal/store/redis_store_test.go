package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/pkg/logger"
	"storefront/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStore(client, logger.NewNop())
}

func TestRedisStore_WriteRead(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "users/u1", map[string]interface{}{"username": "abc", "role": "customer"}))

	raw, err := s.Read(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"abc","role":"customer"}`, string(raw))
	assert.True(t, mr.Exists("test:kv:users/u1"))

	members, err := mr.Members("test:kvidx:users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)

	absent, err := s.Read(ctx, "users/nobody")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestRedisStore_WriteScalar(t *testing.T) {
	_, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "usernames/abc", "u1"))

	raw, err := s.Read(ctx, "usernames/abc")
	require.NoError(t, err)
	var uid string
	require.NoError(t, json.Unmarshal(raw, &uid))
	assert.Equal(t, "u1", uid)

	ok, err := s.Exists(ctx, "usernames/abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "usernames/xyz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Update(t *testing.T) {
	_, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "users/u1", map[string]interface{}{"username": "abc", "emailVerified": false}))
	require.NoError(t, s.Update(ctx, "users/u1", map[string]interface{}{"emailVerified": true}))

	raw, err := s.Read(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"abc","emailVerified":true}`, string(raw))

	// Update creates missing nodes
	require.NoError(t, s.Update(ctx, "users/u2", map[string]interface{}{"role": "admin"}))
	raw, err = s.Read(ctx, "users/u2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(raw))
}

func TestRedisStore_Children(t *testing.T) {
	_, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "products/p1", map[string]interface{}{"name": "Chain"}))
	require.NoError(t, s.Write(ctx, "products/p2", map[string]interface{}{"name": "Brake pad"}))
	require.NoError(t, s.Write(ctx, "users/u1", map[string]interface{}{"username": "abc"}))

	children, err := s.Children(ctx, "products")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.JSONEq(t, `{"name":"Chain"}`, string(children["p1"]))

	empty, err := s.Children(ctx, "carts")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisStore_DeleteSubtree(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "products/p1", map[string]interface{}{"name": "Chain"}))
	require.NoError(t, s.Write(ctx, "products/p2", map[string]interface{}{"name": "Pads"}))

	require.NoError(t, s.Delete(ctx, "products/p1"))

	children, err := s.Children(ctx, "products")
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Contains(t, children, "p2")

	require.NoError(t, s.Delete(ctx, "products"))
	assert.False(t, mr.Exists("test:kv:products/p2"))
	assert.False(t, mr.Exists("test:kvidx:products"))
}

func TestRedisStore_InvalidPath(t *testing.T) {
	_, s := setupTestRedis(t)
	ctx := context.Background()

	_, err := s.Read(ctx, "users/../x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.Write(ctx, "", 1), ErrInvalidPath)
}
