package accessibility

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

func TestDeriverCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	d := NewDeriver(cache.NewBestEffort(mem, logger.Nop(), nil), time.Minute, logger.Nop())
	childID := uuid.New()

	first := d.Rules(ctx, childID, profileWith(domain.DiagnosisADHDCombined), nil)
	if first.SessionConstraints.BreakEveryMins != 10 {
		t.Fatalf("unexpected first derivation %+v", first.SessionConstraints)
	}

	// A changed profile is not seen while the cached entry lives.
	stale := d.Rules(ctx, childID, nil, nil)
	if stale.SessionConstraints.BreakEveryMins != 10 {
		t.Fatalf("expected cached rules, got %+v", stale.SessionConstraints)
	}

	d.Invalidate(ctx, childID)
	fresh := d.Rules(ctx, childID, nil, nil)
	if fresh.SessionConstraints.BreakEveryMins != 15 {
		t.Fatalf("expected fresh derivation after invalidate, got %+v", fresh.SessionConstraints)
	}
}

func TestDeriverWithoutCacheStillDerives(t *testing.T) {
	d := NewDeriver(cache.NewBestEffort(nil, nil, nil), 0, logger.Nop())
	got := d.Rules(context.Background(), uuid.New(), profileWith(domain.DiagnosisDyslexia), nil)
	if got.ContentFilters.MinFlesch != 70 {
		t.Fatalf("got %+v", got.ContentFilters)
	}
}
