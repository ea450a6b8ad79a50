package port

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Cache is a string key-value store with expirations. Implementations are
// concurrency-safe and honour ctx deadlines.
type Cache interface {
	// Get returns ErrMiss for absent keys and other errors for transport failures.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
