package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/ask"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/tuning"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/observability"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/platform/openai"
	"github.com/yungbote/neurobridge-tutor/internal/platform/weaviate"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

// Provider is the embedding and generation backend of the ask pipeline.
type Provider interface {
	ask.Embedder
	ask.Generator
}

type Clients struct {
	// Redis is nil when REDIS_ADDR is empty; the cache then runs in process.
	Redis    *cache.Redis
	Cache    *cache.BestEffort
	Counter  cache.Counter
	Usage    *services.UsageTracker
	Provider Provider
	Embedder ask.Embedder
	Weaviate *weaviate.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, tn tuning.Tuning, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	var inner cache.Cache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		r, err := cache.NewRedis(ctx, log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = r
		out.Counter = r
		inner = r
		metrics.StartRedisCollector(ctx, log, r.Client())
	} else {
		mem := cache.NewMemory()
		out.Counter = mem
		inner = mem
		log.Warn("REDIS_ADDR not set; caching and rate limits are per process")
	}
	out.Cache = cache.NewBestEffort(inner, log, metrics)
	out.Usage = services.NewUsageTracker(out.Counter, cfg.LLMDailyLimit, cfg.EmbedDailyLimit, log)

	// OpenAI
	ocfg := cfg.OpenAI
	ocfg.Retry = tn.Retry
	if strings.TrimSpace(ocfg.APIKey) == "" {
		log.Warn("OPENAI_API_KEY not set; ask requests will get the fallback response")
		out.Provider = unconfiguredProvider{}
	} else {
		oc, err := openai.New(ocfg, log, out.Usage, metrics)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.Provider = oc
	}
	out.Embedder = openai.NewCachedEmbedder(out.Provider, out.Cache, tn.CacheTTLs.Embedding)

	// Weaviate
	if strings.TrimSpace(cfg.Weaviate.Host) != "" {
		wc, err := weaviate.New(cfg.Weaviate, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init weaviate client: %w", err)
		}
		out.Weaviate = wc
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// unconfiguredProvider stands in when no API key is set so that the
// service still boots and every ask degrades to the fallback response.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, domain.NewError(domain.CodeUnavailable, "provider.embed", "language model provider not configured", nil)
}

func (unconfiguredProvider) Generate(context.Context, string, string) (string, error) {
	return "", domain.NewError(domain.CodeUnavailable, "provider.generate", "language model provider not configured", nil)
}
