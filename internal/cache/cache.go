package cache

import (
	"context"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }

// ErrMiss signals that a key is not in the cache. A miss is not a failure;
// callers fall through to the source of truth.
var ErrMiss error = errMiss{}

// Store is a byte-value cache with per-key TTLs. Implementations must treat a
// missing key as ErrMiss and reserve other errors for real backend failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
