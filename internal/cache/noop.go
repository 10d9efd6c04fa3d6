package cache

import (
	"context"
	"time"
)

// NoopStore is a Store that caches nothing. Used when Redis is not
// configured; every Get is a miss, so validation always hits the store of
// record.
type NoopStore struct{}

// NewNoopStore creates a cache store that never holds anything.
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (*NoopStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrMiss
}

func (*NoopStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (*NoopStore) Delete(ctx context.Context, key string) error {
	return nil
}
