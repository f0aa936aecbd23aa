// Package ratelimit limits how often a key (a child id) may hit an endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type Limiter interface {
	// Allow reports whether one more request for key fits in the budget.
	Allow(ctx context.Context, key string) bool
}

// Window is a fixed-window limiter over a shared counter store, so every
// replica sees the same count. A failing store lets requests through.
type Window struct {
	counter cache.Counter
	prefix  string
	limit   int64
	window  time.Duration
	log     *logger.Logger
}

func NewWindow(counter cache.Counter, prefix string, limit int, window time.Duration, log *logger.Logger) *Window {
	if log == nil {
		log = logger.Nop()
	}
	return &Window{
		counter: counter,
		prefix:  prefix,
		limit:   int64(limit),
		window:  window,
		log:     log.With("component", "RateLimitWindow", "prefix", prefix),
	}
}

func (w *Window) Allow(ctx context.Context, key string) bool {
	n, err := w.counter.Incr(ctx, w.prefix+key, w.window)
	if err != nil {
		w.log.Warn("rate counter failed; allowing request", "error", err)
		return true
	}
	return n <= w.limit
}

// defaultLocalKeys caps how many children hold a bucket at once.
const defaultLocalKeys = 10000

// Local is a per-process token bucket per key, used when no shared store is
// configured. Buckets idle for a full window are dropped: by then they have
// refilled to burst, so a fresh bucket behaves the same.
type Local struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewLocal allows perWindow requests per window with a burst of perWindow.
func NewLocal(perWindow int, window time.Duration) *Local {
	return newLocal(perWindow, window, defaultLocalKeys)
}

func newLocal(perWindow int, window time.Duration, maxKeys int) *Local {
	if perWindow <= 0 {
		perWindow = 1
	}
	return &Local{
		limit:   rate.Every(window / time.Duration(perWindow)),
		burst:   perWindow,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, window),
	}
}

func (l *Local) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-adding refreshes the idle deadline.
	l.buckets.Add(key, b)
	l.mu.Unlock()
	return b.Allow()
}

// Len is the number of keys currently holding a bucket.
func (l *Local) Len() int { return l.buckets.Len() }
