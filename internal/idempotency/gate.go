package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/dairy/internal/config"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "dairy:gate:"

var (
	ErrEmptyKey   = errors.New("gate_key_empty")
	ErrInvalidTTL = errors.New("gate_ttl_must_be_positive")
)

// Lease is the outcome of one Acquire. Token is set only when this caller
// wrote the key.
type Lease struct {
	Key      string
	Token    string
	Decision string
}

// Run reports whether the guarded work should go ahead.
func (l Lease) Run() bool {
	switch l.Decision {
	case obsmetrics.GateDecisionAcquired, obsmetrics.GateDecisionForced, obsmetrics.GateDecisionFailOpen:
		return true
	}
	return false
}

type Params struct {
	fx.In

	Store    Store
	Log      *zap.Logger
	Schedule *config.ScheduleConfigHolder `optional:"true"`
}

// Gate lets exactly one caller per key run within the key's ttl.
type Gate struct {
	store    Store
	log      *zap.Logger
	schedule *config.ScheduleConfigHolder
}

func NewGate(p Params) *Gate {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		store:    p.Store,
		log:      log.Named("idempotency.gate"),
		schedule: p.Schedule,
	}
}

// Acquire marks key as taken for ttl. When the store fails the lease follows
// the configured failure policy and the store error is returned with it.
func (g *Gate) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	return g.acquire(ctx, key, ttl, false)
}

// Force runs regardless of an existing mark, claiming the key if it is free.
func (g *Gate) Force(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	return g.acquire(ctx, key, ttl, true)
}

func (g *Gate) acquire(ctx context.Context, key string, ttl time.Duration, force bool) (Lease, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Lease{}, ErrEmptyKey
	}
	if ttl <= 0 {
		return Lease{Key: key}, ErrInvalidTTL
	}

	token := uuid.NewString()
	ok, err := g.store.SetIfAbsent(ctx, keyPrefix+key, token, ttl)
	if err != nil {
		lease := Lease{Key: key, Decision: obsmetrics.GateDecisionFailShut}
		if force || g.schedule.Get().GatePolicy == config.GatePolicyOpen {
			lease.Decision = obsmetrics.GateDecisionFailOpen
		}
		g.log.Warn("gate.store_error",
			zap.String("key", key),
			zap.String("decision", lease.Decision),
			zap.Error(err),
		)
		return lease, err
	}

	lease := Lease{Key: key}
	switch {
	case ok:
		lease.Token = token
		lease.Decision = obsmetrics.GateDecisionAcquired
		if force {
			lease.Decision = obsmetrics.GateDecisionForced
		}
	case force:
		lease.Decision = obsmetrics.GateDecisionForced
	default:
		lease.Decision = obsmetrics.GateDecisionHeld
	}
	g.log.Debug("gate.decision", zap.String("key", key), zap.String("decision", lease.Decision))
	return lease, nil
}

// Release clears a key this caller holds so a later attempt can run.
func (g *Gate) Release(ctx context.Context, lease Lease) error {
	if lease.Token == "" {
		return nil
	}
	return g.store.Delete(ctx, keyPrefix+lease.Key, lease.Token)
}
