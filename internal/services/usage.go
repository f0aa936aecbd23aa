package services

import (
	"context"
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const (
	usageKeyLLM   = "usage:llm:"
	usageKeyEmbed = "usage:embed:"
	usageTTL      = 2 * 24 * time.Hour

	DefaultLLMDailyLimit   = 60
	DefaultEmbedDailyLimit = 500
)

// Usage is today's provider call count. The limits are for display; nothing
// blocks a call once they are reached.
type Usage struct {
	Date            string `json:"date"`
	LLMRequests     int64  `json:"llm_requests"`
	LLMDailyLimit   int    `json:"llm_daily_limit"`
	EmbedRequests   int64  `json:"embed_requests"`
	EmbedDailyLimit int    `json:"embed_daily_limit"`
}

// UsageTracker counts successful provider calls per UTC day. It satisfies
// the openai client's UsageRecorder. A nil counter store records nothing.
type UsageTracker struct {
	counter    cache.Counter
	llmLimit   int
	embedLimit int
	log        *logger.Logger
	now        func() time.Time
}

func NewUsageTracker(counter cache.Counter, llmLimit, embedLimit int, baseLog *logger.Logger) *UsageTracker {
	if llmLimit <= 0 {
		llmLimit = DefaultLLMDailyLimit
	}
	if embedLimit <= 0 {
		embedLimit = DefaultEmbedDailyLimit
	}
	return &UsageTracker{
		counter:    counter,
		llmLimit:   llmLimit,
		embedLimit: embedLimit,
		log:        baseLog.With("service", "UsageTracker"),
		now:        time.Now,
	}
}

func (u *UsageTracker) RecordLLM(ctx context.Context) { u.incr(ctx, usageKeyLLM) }

func (u *UsageTracker) RecordEmbed(ctx context.Context) { u.incr(ctx, usageKeyEmbed) }

func (u *UsageTracker) Usage(ctx context.Context) Usage {
	day := u.day()
	return Usage{
		Date:            day,
		LLMRequests:     u.count(ctx, usageKeyLLM+day),
		LLMDailyLimit:   u.llmLimit,
		EmbedRequests:   u.count(ctx, usageKeyEmbed+day),
		EmbedDailyLimit: u.embedLimit,
	}
}

func (u *UsageTracker) day() string { return u.now().UTC().Format(dateLayout) }

func (u *UsageTracker) incr(ctx context.Context, prefix string) {
	if u == nil || u.counter == nil {
		return
	}
	if _, err := u.counter.Incr(ctx, prefix+u.day(), usageTTL); err != nil {
		u.log.Warn("usage counter failed", "key", prefix, "error", err)
	}
}

func (u *UsageTracker) count(ctx context.Context, key string) int64 {
	if u.counter == nil {
		return 0
	}
	n, err := u.counter.Count(ctx, key)
	if err != nil {
		u.log.Warn("usage read failed", "key", key, "error", err)
		return 0
	}
	return n
}
