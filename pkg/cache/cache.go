package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is an explicit TTL-bound cache port. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Noop satisfies Cache without storing anything. Useful when caching is
// disabled by configuration.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error)                  { return nil, ErrMiss }
func (Noop) Set(context.Context, string, []byte, time.Duration) error     { return nil }
func (Noop) Delete(context.Context, string) error                         { return nil }
