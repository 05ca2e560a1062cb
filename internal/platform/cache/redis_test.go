package cache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewRedisCache(Config{Host: host, Port: port, KeyPrefix: "orch"})
	require.NoError(t, err)
	return c
}

func TestNewRedisCacheFailsWhenUnreachable(t *testing.T) {
	_, err := NewRedisCache(Config{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "quota:worker-a", map[string]int{"tokens": 42}, time.Minute))

	var dest map[string]int
	require.NoError(t, c.Get(ctx, "quota:worker-a", &dest))
	assert.Equal(t, 42, dest["tokens"])
}

func TestGetMissingKeyReturnsErrCacheMiss(t *testing.T) {
	c := newTestCache(t)
	var dest map[string]int
	err := c.Get(context.Background(), "nope", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDeleteRemovesKey(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIncrementByAccumulates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	v, err := c.IncrementBy(ctx, "quota:worker-a:tokens", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	v, err = c.IncrementBy(ctx, "quota:worker-a:tokens", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), v)
}

func TestSetNXOnlySetsOnce(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "holder-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealthReflectsConnectivity(t *testing.T) {
	c := newTestCache(t)
	assert.NoError(t, c.Health(context.Background()))

	require.NoError(t, c.Close())
}
