package cache

import (
	"context"
	"time"
)

// Store is the shared short-lived state interface: staged 2FA enrollment
// material, login rate-limit counters, and similar ephemeral values that
// must expire on their own.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
