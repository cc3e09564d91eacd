package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dairy/internal/config"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreSetIfAbsent(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "gate:a", "t1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "gate:a", "t2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := mr.Get("gate:a")
	require.NoError(t, err)
	assert.Equal(t, "t1", value)
	assert.Equal(t, time.Minute, mr.TTL("gate:a"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = store.SetIfAbsent(ctx, "gate:a", "t3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreDeleteComparesValue(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.SetIfAbsent(ctx, "gate:b", "mine", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "gate:b", "theirs"))
	assert.True(t, mr.Exists("gate:b"))

	require.NoError(t, store.Delete(ctx, "gate:b", "mine"))
	assert.False(t, mr.Exists("gate:b"))
}

func TestGateOverRedis(t *testing.T) {
	store, mr := newRedisStore(t)
	gate := newGate(t, store, config.GatePolicyClosed)
	ctx := context.Background()

	lease, err := gate.Acquire(ctx, "distributor_orders:2026-03-14", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, lease.Run())
	assert.True(t, mr.Exists(keyPrefix+"distributor_orders:2026-03-14"))

	held, err := gate.Acquire(ctx, "distributor_orders:2026-03-14", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, obsmetrics.GateDecisionHeld, held.Decision)

	mr.Close()
	down, err := gate.Acquire(ctx, "distributor_orders:2026-03-15", 24*time.Hour)
	require.Error(t, err)
	assert.Equal(t, obsmetrics.GateDecisionFailShut, down.Decision)
}

func TestNilRedisStore(t *testing.T) {
	var store *RedisStore
	_, err := store.SetIfAbsent(context.Background(), "k", "v", time.Minute)
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}
