package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "Invalid URL", url: "invalid://url"},
		{name: "Empty URL", url: ""},
		{name: "Unreachable", url: "redis://127.0.0.1:1/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", nil)
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestClient_GetSetDelete(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte(`{"a":1}`), 0))
	assert.True(t, mr.Exists("k"))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(val))

	ok, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Delete(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, Nil)

	assert.NoError(t, client.Delete(ctx))
}

func TestClient_SetWithTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "short", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	ok, err := client.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_MGetAndSets(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, "a", "1", 0)
		pipe.SAdd(ctx, "idx", "a", "b")
		return nil
	}))

	vals, err := client.MGet(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, "1", vals[0])
	assert.Nil(t, vals[1])

	members, err := client.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	empty, err := client.MGet(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestClient_Watch(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	err := client.Watch(ctx, func(tx *goredis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, "w", "done", 0)
			return nil
		})
		return err
	}, "w")
	require.NoError(t, err)

	val, err := client.Get(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, "done", string(val))
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)
	assert.NoError(t, client.Health(context.Background()))

	mr.SetError("ERR injected failure")
	assert.Error(t, client.Health(context.Background()))
}

func TestPrefixForLog(t *testing.T) {
	assert.Equal(t, "short", prefixForLog("short"))
	assert.Equal(t, "storefront:kv:users/abcd…", prefixForLog("storefront:kv:users/abcdefghijk"))
}
