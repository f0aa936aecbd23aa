package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
)

const EmbeddingCacheTTL = 7 * 24 * time.Hour

// Embedder is the embedding capability consumed by the engine.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder serves repeated texts from the cache.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.BestEffort
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, c *cache.BestEffort, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = EmbeddingCacheTTL
	}
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

func EmbeddingCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])[:16]
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := EmbeddingCacheKey(text)
	var vec []float32
	if e.cache.GetJSON(ctx, key, &vec) && len(vec) > 0 {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.SetJSON(ctx, key, vec, e.ttl)
	return vec, nil
}
