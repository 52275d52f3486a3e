// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for byte-oriented key-value caching.
// A miss is reported as (nil, false, nil); errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// prefixed namespaces every key of an underlying cache.
type prefixed struct {
	inner  Cache
	prefix string
}

// WithPrefix returns a Cache that prepends prefix to every key, so several
// consumers can share one backend without key collisions.
func WithPrefix(c Cache, prefix string) Cache {
	return &prefixed{inner: c, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
