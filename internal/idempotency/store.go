package idempotency

import (
	"context"
	"time"
)

// Store is an atomic set-if-absent key space with expiry.
type Store interface {
	// SetIfAbsent stores value under key for ttl unless the key is live.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key only while it still holds value.
	Delete(ctx context.Context, key, value string) error
}
