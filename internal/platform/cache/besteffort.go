package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

// Observer receives hit/miss/error outcomes, usually the metrics registry.
type Observer interface {
	ObserveCache(op, outcome string)
}

// BestEffort wraps a Cache so that every failure degrades to a miss or a
// no-op. A nil inner cache is valid and always misses.
type BestEffort struct {
	inner Cache
	log   *logger.Logger
	obs   Observer
}

func NewBestEffort(inner Cache, log *logger.Logger, obs Observer) *BestEffort {
	if log == nil {
		log = logger.Nop()
	}
	return &BestEffort{inner: inner, log: log.With("component", "cache"), obs: obs}
}

func (b *BestEffort) Enabled() bool { return b != nil && b.inner != nil }

func (b *BestEffort) Get(ctx context.Context, key string) ([]byte, bool) {
	if !b.Enabled() {
		return nil, false
	}
	val, err := b.inner.Get(ctx, key)
	switch {
	case err == nil:
		b.observe("get", "hit")
		return val, true
	case errors.Is(err, ErrMiss):
		b.observe("get", "miss")
	default:
		b.observe("get", "error")
		b.log.Warn("cache get failed", "key", key, "error", err)
	}
	return nil, false
}

func (b *BestEffort) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if !b.Enabled() {
		return
	}
	if err := b.inner.Set(ctx, key, val, ttl); err != nil {
		b.observe("set", "error")
		b.log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (b *BestEffort) Delete(ctx context.Context, keys ...string) {
	if !b.Enabled() || len(keys) == 0 {
		return
	}
	if err := b.inner.Delete(ctx, keys...); err != nil {
		b.observe("delete", "error")
		b.log.Warn("cache delete failed", "keys", keys, "error", err)
	}
}

// GetJSON decodes a cached JSON value into dst. A value that no longer
// decodes is treated as a miss.
func (b *BestEffort) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := b.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		b.log.Warn("cache value undecodable", "key", key, "error", err)
		return false
	}
	return true
}

func (b *BestEffort) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) {
	if !b.Enabled() {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		b.log.Warn("cache value unencodable", "key", key, "error", err)
		return
	}
	b.Set(ctx, key, raw, ttl)
}

func (b *BestEffort) observe(op, outcome string) {
	if b.obs != nil {
		b.obs.ObserveCache(op, outcome)
	}
}
