// Package rerank re-scores retrieved chunks against the child's profile,
// current state and weak topics.
package rerank

import (
	"sort"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// Config holds every bonus, penalty and threshold used when scoring.
type Config struct {
	ModalityBonus          float64 `yaml:"modality_bonus"`
	FleschTargetBase       float64 `yaml:"flesch_target_base"`
	FleschCognitiveFactor  float64 `yaml:"flesch_cognitive_factor"`
	FleschPenaltyPerPoint  float64 `yaml:"flesch_penalty_per_point"`
	ASDIdiomThreshold      float64 `yaml:"asd_idiom_threshold"`
	ASDIdiomPenalty        float64 `yaml:"asd_idiom_penalty"`
	ADHDExerciseBonus      float64 `yaml:"adhd_exercise_bonus"`
	ADHDWordThreshold      float64 `yaml:"adhd_word_threshold"`
	ADHDWordPenalty        float64 `yaml:"adhd_word_penalty"`
	DyslexiaFleschMin      float64 `yaml:"dyslexia_flesch_min"`
	DyslexiaFleschBonus    float64 `yaml:"dyslexia_flesch_bonus"`
	WeakTopicBonus         float64 `yaml:"weak_topic_bonus"`
	EngagementThreshold    float64 `yaml:"engagement_threshold"`
	EngagementBonus        float64 `yaml:"engagement_bonus"`
	SensoryThresholdFactor float64 `yaml:"sensory_threshold_factor"`
	SensoryPenaltyFactor   float64 `yaml:"sensory_penalty_factor"`
	DefaultTopN            int     `yaml:"default_top_n"`
}

func DefaultConfig() Config {
	return Config{
		ModalityBonus:          0.3,
		FleschTargetBase:       70,
		FleschCognitiveFactor:  20,
		FleschPenaltyPerPoint:  0.01,
		ASDIdiomThreshold:      0.2,
		ASDIdiomPenalty:        0.5,
		ADHDExerciseBonus:      0.3,
		ADHDWordThreshold:      150,
		ADHDWordPenalty:        0.3,
		DyslexiaFleschMin:      70,
		DyslexiaFleschBonus:    0.2,
		WeakTopicBonus:         0.4,
		EngagementThreshold:    0.7,
		EngagementBonus:        0.2,
		SensoryThresholdFactor: 1.0,
		SensoryPenaltyFactor:   0.5,
		DefaultTopN:            5,
	}
}

// Input is everything the reranker looks at besides the candidates.
// Profile may be nil; the text modality, a 0.5 visual threshold and no
// diagnoses are assumed then.
type Input struct {
	Profile       *domain.NeuroProfile
	CognitiveLoad float64
	WeakTopics    []string
	TopN          int
}

type Scored struct {
	Chunk domain.KnowledgeChunk
	Score float64
}

type Reranker struct {
	cfg Config
}

func New(cfg Config) *Reranker {
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 5
	}
	return &Reranker{cfg: cfg}
}

// Rerank returns at most TopN chunks ordered by descending score. Ties keep
// their retrieval order.
func (r *Reranker) Rerank(candidates []domain.KnowledgeChunk, in Input) []domain.KnowledgeChunk {
	scored := r.Score(candidates, in)
	n := in.TopN
	if n <= 0 {
		n = r.cfg.DefaultTopN
	}
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]domain.KnowledgeChunk, 0, n)
	for _, s := range scored[:n] {
		out = append(out, s.Chunk)
	}
	return out
}

// Score returns every candidate with its score, sorted.
func (r *Reranker) Score(candidates []domain.KnowledgeChunk, in Input) []Scored {
	p := newProfileView(in)
	scored := make([]Scored, len(candidates))
	for i := range candidates {
		scored[i] = Scored{Chunk: candidates[i], Score: r.score(&candidates[i], p)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

type profileView struct {
	modalities    map[string]bool
	asd           bool
	adhd          bool
	dyslexia      bool
	visual        float64
	cognitiveLoad float64
	weak          map[string]bool
}

func newProfileView(in Input) profileView {
	p := profileView{
		modalities:    map[string]bool{},
		visual:        0.5,
		cognitiveLoad: in.CognitiveLoad,
		weak:          make(map[string]bool, len(in.WeakTopics)),
	}
	for _, t := range in.WeakTopics {
		p.weak[t] = true
	}
	np := in.Profile
	if np == nil || len(np.PreferredModalities) == 0 {
		p.modalities[string(domain.ModalityText)] = true
	} else {
		for _, m := range np.PreferredModalities {
			p.modalities[string(m)] = true
		}
	}
	if np == nil {
		return p
	}
	p.visual = np.Threshold("visual", 0.5)
	for _, d := range np.Diagnoses {
		switch {
		case d.IsASD():
			p.asd = true
		case d.IsADHD():
			p.adhd = true
		case d == domain.DiagnosisDyslexia:
			p.dyslexia = true
		}
	}
	return p
}

func (r *Reranker) score(c *domain.KnowledgeChunk, p profileView) float64 {
	cfg := r.cfg
	score := 0.0

	// Formats and modalities share a few names (TEXT, VIDEO); only those match.
	if p.modalities[string(c.FormatType)] {
		score += cfg.ModalityBonus
	}

	target := cfg.FleschTargetBase - p.cognitiveLoad*cfg.FleschCognitiveFactor
	if c.FleschScore < target {
		score -= (target - c.FleschScore) * cfg.FleschPenaltyPerPoint
	}

	if p.asd && c.NeuroTag("idiom_density") > cfg.ASDIdiomThreshold {
		score -= cfg.ASDIdiomPenalty
	}
	if p.adhd {
		if c.FormatType == domain.FormatExercise || c.FormatType == domain.FormatQuiz {
			score += cfg.ADHDExerciseBonus
		}
		if c.NeuroTag("word_count") > cfg.ADHDWordThreshold {
			score -= cfg.ADHDWordPenalty
		}
	}
	if p.dyslexia && c.FleschScore >= cfg.DyslexiaFleschMin {
		score += cfg.DyslexiaFleschBonus
	}
	if p.weak[c.Topic] {
		score += cfg.WeakTopicBonus
	}
	if c.AvgEngagement > cfg.EngagementThreshold {
		score += cfg.EngagementBonus
	}
	if c.SensoryLoad > p.visual*cfg.SensoryThresholdFactor {
		score *= 1 - cfg.SensoryPenaltyFactor
	}
	return score
}
