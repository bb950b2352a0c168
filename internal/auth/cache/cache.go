package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or past its TTL.
var ErrMiss = errors.New("cache: miss")

// Cache is the shared TTL key/value store the subsystem leans on for
// verification codes, QR session state, and rate counters. Concrete
// drivers (redis, memory) implement this.
type Cache interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// GetDel atomically reads and deletes key. Exactly one concurrent
	// caller observes the value; the rest get ErrMiss.
	GetDel(ctx context.Context, key string) (string, error)

	// Set writes key unconditionally with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key only if absent. Returns false (and leaves the
	// existing value and its TTL untouched) when the key is already live.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndSwap replaces key's value with next only if its current
	// value equals prev, resetting the TTL. Returns false if the key is
	// absent or holds a different value.
	CompareAndSwap(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Incr increments the counter at key and returns the new value. The
	// window TTL is applied only when the counter is created, so the
	// window does not slide on every tick.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
