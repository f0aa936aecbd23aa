package accessibility

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const DefaultTTL = 30 * time.Minute

func CacheKey(childID uuid.UUID) string { return "adaptation:" + childID.String() }

// Deriver is a read-through cache around Derive keyed by child id. Callers
// that mutate a profile or disability must call Invalidate.
type Deriver struct {
	cache *cache.BestEffort
	ttl   time.Duration
	log   *logger.Logger
}

func NewDeriver(c *cache.BestEffort, ttl time.Duration, log *logger.Logger) *Deriver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Deriver{cache: c, ttl: ttl, log: log.With("service", "AccessibilityDeriver")}
}

func (d *Deriver) Rules(ctx context.Context, childID uuid.UUID, profile *domain.NeuroProfile, disabilities []domain.ChildDisability) Rules {
	key := CacheKey(childID)
	var cached Rules
	if d.cache.GetJSON(ctx, key, &cached) {
		if cached.UIDirectives == nil {
			cached.UIDirectives = map[string]any{}
		}
		if cached.PromptRules == nil {
			cached.PromptRules = []string{}
		}
		return cached
	}
	rules := Derive(profile, disabilities)
	d.cache.SetJSON(ctx, key, rules, d.ttl)
	return rules
}

func (d *Deriver) Invalidate(ctx context.Context, childID uuid.UUID) {
	d.cache.Delete(ctx, CacheKey(childID))
	d.log.Debug("adaptation rules invalidated", "child_id", childID)
}
