package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingStore struct{}

func (failingStore) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string, string) error {
	return errors.New("connection refused")
}

func newGate(t *testing.T, store Store, policy string) *Gate {
	t.Helper()
	return NewGate(Params{
		Store:    store,
		Log:      zaptest.NewLogger(t),
		Schedule: config.NewStaticScheduleConfigHolder(config.ScheduleConfig{GatePolicy: policy}),
	})
}

func TestGateAcquireOnce(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	gate := newGate(t, NewMemoryStore(fake.Now), config.GatePolicyClosed)
	ctx := context.Background()

	first, err := gate.Acquire(ctx, "monthly_bills:2026-03", time.Hour)
	require.NoError(t, err)
	assert.True(t, first.Run())
	assert.Equal(t, obsmetrics.GateDecisionAcquired, first.Decision)
	assert.NotEmpty(t, first.Token)

	second, err := gate.Acquire(ctx, "monthly_bills:2026-03", time.Hour)
	require.NoError(t, err)
	assert.False(t, second.Run())
	assert.Equal(t, obsmetrics.GateDecisionHeld, second.Decision)

	other, err := gate.Acquire(ctx, "monthly_bills:2026-04", time.Hour)
	require.NoError(t, err)
	assert.True(t, other.Run())

	fake.Advance(time.Hour + time.Second)
	third, err := gate.Acquire(ctx, "monthly_bills:2026-03", time.Hour)
	require.NoError(t, err)
	assert.True(t, third.Run())
}

func TestGateConcurrentCallersSingleWinner(t *testing.T) {
	gate := newGate(t, NewMemoryStore(nil), config.GatePolicyClosed)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := gate.Acquire(context.Background(), "distributor_orders:2026-03-14", time.Minute)
			if err == nil && lease.Run() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestGateReleaseOnlyOwnToken(t *testing.T) {
	gate := newGate(t, NewMemoryStore(nil), config.GatePolicyClosed)
	ctx := context.Background()

	lease, err := gate.Acquire(ctx, "recurring_orders:2026-03", time.Hour)
	require.NoError(t, err)

	stale := Lease{Key: lease.Key, Token: "someone-else"}
	require.NoError(t, gate.Release(ctx, stale))
	held, err := gate.Acquire(ctx, "recurring_orders:2026-03", time.Hour)
	require.NoError(t, err)
	assert.False(t, held.Run())

	require.NoError(t, gate.Release(ctx, lease))
	again, err := gate.Acquire(ctx, "recurring_orders:2026-03", time.Hour)
	require.NoError(t, err)
	assert.True(t, again.Run())
}

func TestGateForce(t *testing.T) {
	gate := newGate(t, NewMemoryStore(nil), config.GatePolicyClosed)
	ctx := context.Background()

	_, err := gate.Acquire(ctx, "monthly_bills:2026-03", time.Hour)
	require.NoError(t, err)

	forced, err := gate.Force(ctx, "monthly_bills:2026-03", time.Hour)
	require.NoError(t, err)
	assert.True(t, forced.Run())
	assert.Equal(t, obsmetrics.GateDecisionForced, forced.Decision)
	assert.Empty(t, forced.Token)

	fresh, err := gate.Force(ctx, "monthly_bills:2026-04", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.Token)
	held, err := gate.Acquire(ctx, "monthly_bills:2026-04", time.Hour)
	require.NoError(t, err)
	assert.False(t, held.Run())
}

func TestGateFailurePolicy(t *testing.T) {
	ctx := context.Background()

	closed := newGate(t, failingStore{}, config.GatePolicyClosed)
	lease, err := closed.Acquire(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.False(t, lease.Run())
	assert.Equal(t, obsmetrics.GateDecisionFailShut, lease.Decision)

	open := newGate(t, failingStore{}, config.GatePolicyOpen)
	lease, err = open.Acquire(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.True(t, lease.Run())
	assert.Equal(t, obsmetrics.GateDecisionFailOpen, lease.Decision)
	// nothing was written, so nothing to release
	assert.NoError(t, open.Release(ctx, lease))
}

func TestGateRejectsBadInput(t *testing.T) {
	gate := newGate(t, NewMemoryStore(nil), config.GatePolicyClosed)

	_, err := gate.Acquire(context.Background(), "  ", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)

	lease, err := gate.Acquire(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	assert.False(t, lease.Run())
}
