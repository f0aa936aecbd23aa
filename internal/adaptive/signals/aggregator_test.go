package signals

import (
	"math"
	"testing"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func TestAggregateEmptyBatch(t *testing.T) {
	got := NewAggregator(DefaultWeights()).Aggregate(nil)
	// sigmoid(0) = 0.5; mood = -1 * 0.6; readiness = 1 - 0.275 - 0.27
	if !near(got.CognitiveLoad, 0.5) || !near(got.MoodScore, -0.6) || !near(got.ReadinessScore, 0.455) {
		t.Fatalf("unexpected scores %+v", got)
	}
}

func TestAggregatePositiveMood(t *testing.T) {
	got := NewAggregator(DefaultWeights()).Aggregate([]Sample{
		{Type: domain.SignalEmojiReaction, Value: 1},
		{Type: domain.SignalEmojiReaction, Value: 1},
	})
	if !near(got.MoodScore, 0.6) {
		t.Fatalf("mood: got %v want 0.6", got.MoodScore)
	}
	if !near(got.ReadinessScore, 0.725) {
		t.Fatalf("readiness: got %v want 0.725", got.ReadinessScore)
	}
}

func TestAggregateAveragesPerType(t *testing.T) {
	a := NewAggregator(DefaultWeights())
	got := a.Aggregate([]Sample{
		{Type: domain.SignalKeypressDelay, Value: 4000},
		{Type: domain.SignalKeypressDelay, Value: 12000},
		{Type: domain.SignalBackspaceRate, Value: 0.4},
	})
	raw := (8000.0/8000.0)*0.45 + 0.4*0.25
	want := math.Round((1/(1+math.Exp(-raw)))*1e4) / 1e4
	if got.CognitiveLoad != want {
		t.Fatalf("cognitive: got %v want %v", got.CognitiveLoad, want)
	}
}

func TestAggregateStaysInRange(t *testing.T) {
	a := NewAggregator(DefaultWeights())
	got := a.Aggregate([]Sample{
		{Type: domain.SignalKeypressDelay, Value: 1e9},
		{Type: domain.SignalAbandon, Value: 50},
		{Type: domain.SignalHintRequested, Value: 50},
	})
	if got.CognitiveLoad < 0 || got.CognitiveLoad > 1 {
		t.Fatalf("cognitive out of range: %v", got.CognitiveLoad)
	}
	if got.MoodScore != -1 {
		t.Fatalf("mood should clamp to -1, got %v", got.MoodScore)
	}
	if got.ReadinessScore < 0 || got.ReadinessScore > 1 {
		t.Fatalf("readiness out of range: %v", got.ReadinessScore)
	}
}

func TestAggregateIgnoresUnusedTypes(t *testing.T) {
	a := NewAggregator(DefaultWeights())
	base := a.Aggregate(nil)
	got := a.Aggregate([]Sample{{Type: domain.SignalScrollSpeed, Value: 99}})
	if got != base {
		t.Fatalf("scroll speed should not move scores: %+v vs %+v", got, base)
	}
}
