// Package cache is the key/value accelerator in front of derived data
// (adaptation rules, embeddings, weak topics). Callers never see cache
// errors: they go through BestEffort, which turns every failure into a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Counter is a fixed-window counter store used for rate limits and daily
// usage tallies. Incr returns the value after incrementing and sets ttl on
// the first increment of a window.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}
