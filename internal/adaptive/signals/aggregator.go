// Package signals reduces a batch of behavioral events into the three state
// scores the rest of the engine adapts to.
package signals

import (
	"math"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// Weights are the tunable coefficients of the aggregation formulas.
type Weights struct {
	KeypressDivisorMs float64 `yaml:"keypress_divisor_ms"`
	KeypressWeight    float64 `yaml:"keypress_weight"`
	BackspaceWeight   float64 `yaml:"backspace_weight"`
	ReReadWeight      float64 `yaml:"re_read_weight"`
	HintWeight        float64 `yaml:"hint_weight"`

	MoodPositiveWeight float64 `yaml:"mood_positive_weight"`
	MoodAbandonWeight  float64 `yaml:"mood_abandon_weight"`
	MoodHintWeight     float64 `yaml:"mood_hint_weight"`

	ReadinessCognitiveWeight float64 `yaml:"readiness_cognitive_weight"`
	ReadinessMoodWeight      float64 `yaml:"readiness_mood_weight"`
}

func DefaultWeights() Weights {
	return Weights{
		KeypressDivisorMs:        8000,
		KeypressWeight:           0.45,
		BackspaceWeight:          0.25,
		ReReadWeight:             0.20,
		HintWeight:               0.10,
		MoodPositiveWeight:       0.6,
		MoodAbandonWeight:        0.5,
		MoodHintWeight:           0.2,
		ReadinessCognitiveWeight: 0.55,
		ReadinessMoodWeight:      0.45,
	}
}

type Sample struct {
	Type  domain.SignalType
	Value float64
}

// Scores is the aggregated state. All values are rounded to 4 decimals.
type Scores struct {
	CognitiveLoad  float64 `json:"cognitive_load"`
	MoodScore      float64 `json:"mood_score"`
	ReadinessScore float64 `json:"readiness_score"`
}

type Aggregator struct {
	w Weights
}

func NewAggregator(w Weights) *Aggregator {
	if w.KeypressDivisorMs <= 0 {
		w.KeypressDivisorMs = DefaultWeights().KeypressDivisorMs
	}
	return &Aggregator{w: w}
}

// Aggregate is pure: types missing from the batch contribute zero.
func (a *Aggregator) Aggregate(samples []Sample) Scores {
	sums := make(map[domain.SignalType]float64)
	counts := make(map[domain.SignalType]int)
	for _, s := range samples {
		sums[s.Type] += s.Value
		counts[s.Type]++
	}
	avg := func(t domain.SignalType) float64 {
		if counts[t] == 0 {
			return 0
		}
		return sums[t] / float64(counts[t])
	}

	keypress := avg(domain.SignalKeypressDelay)
	backspace := avg(domain.SignalBackspaceRate)
	reRead := avg(domain.SignalReRead)
	hint := avg(domain.SignalHintRequested)
	abandon := avg(domain.SignalAbandon)
	positive := avg(domain.SignalEmojiReaction)

	w := a.w
	cognitiveRaw := (keypress/w.KeypressDivisorMs)*w.KeypressWeight +
		backspace*w.BackspaceWeight +
		reRead*w.ReReadWeight +
		hint*w.HintWeight
	cognitive := clamp(sigmoid(cognitiveRaw), 0, 1)

	moodRaw := (positive*2-1)*w.MoodPositiveWeight - abandon*w.MoodAbandonWeight - hint*w.MoodHintWeight
	mood := clamp(moodRaw, -1, 1)

	readiness := clamp(1-cognitive*w.ReadinessCognitiveWeight-math.Max(0, -mood)*w.ReadinessMoodWeight, 0, 1)

	return Scores{
		CognitiveLoad:  round4(cognitive),
		MoodScore:      round4(mood),
		ReadinessScore: round4(readiness),
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
