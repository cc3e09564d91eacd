package idempotency

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dairy/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("idempotency",
	fx.Provide(NewStore),
	fx.Provide(NewGate),
)

type StoreParams struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Clock  clock.Clock
	Log    *zap.Logger
}

// NewStore picks redis when a client is available, else process memory.
func NewStore(p StoreParams) Store {
	if p.Client != nil {
		p.Log.Info("idempotency.store", zap.String("backend", "redis"))
		return NewRedisStore(p.Client)
	}
	p.Log.Warn("idempotency.store", zap.String("backend", "memory"))
	return NewMemoryStore(p.Clock.Now)
}
