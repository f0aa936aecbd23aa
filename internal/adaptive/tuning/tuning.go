// Package tuning gathers every tunable constant of the engine and loads
// overrides from a YAML file. Keys missing from the file keep their defaults.
package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/fsrs"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/rerank"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/signals"
	"github.com/yungbote/neurobridge-tutor/internal/platform/retry"
)

type CacheTTLs struct {
	Adaptation time.Duration `yaml:"adaptation"`
	WeakTopics time.Duration `yaml:"weak_topics"`
	Embedding  time.Duration `yaml:"embedding"`
	Session    time.Duration `yaml:"session"`
}

type Tuning struct {
	Signals   signals.Weights   `yaml:"signals"`
	Rerank    rerank.Config     `yaml:"rerank"`
	Hybrid    retrieval.Weights `yaml:"hybrid"`
	FSRS      fsrs.Params       `yaml:"fsrs"`
	Retry     retry.Policy      `yaml:"retry"`
	CacheTTLs CacheTTLs         `yaml:"cache_ttls"`
	TopK      int               `yaml:"top_k"`
	TopN      int               `yaml:"top_n"`
}

func Default() Tuning {
	return Tuning{
		Signals: signals.DefaultWeights(),
		Rerank:  rerank.DefaultConfig(),
		Hybrid:  retrieval.DefaultWeights(),
		FSRS:    fsrs.DefaultParams(),
		Retry:   retry.DefaultPolicy(),
		CacheTTLs: CacheTTLs{
			Adaptation: 30 * time.Minute,
			WeakTopics: 5 * time.Minute,
			Embedding:  7 * 24 * time.Hour,
			Session:    4 * time.Hour,
		},
		TopK: retrieval.DefaultTopK,
		TopN: 5,
	}
}

// Load returns the defaults overlaid with path. An empty path yields the
// defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := Parse(raw, &t); err != nil {
		return t, err
	}
	return t, nil
}

// Parse overlays raw YAML onto t in place.
func Parse(raw []byte, t *Tuning) error {
	if err := yaml.Unmarshal(raw, t); err != nil {
		return fmt.Errorf("parse tuning file: %w", err)
	}
	return t.Validate()
}

func (t Tuning) Validate() error {
	if len(t.FSRS.W) < 4 {
		return fmt.Errorf("tuning: fsrs.w needs at least 4 weights, got %d", len(t.FSRS.W))
	}
	if t.FSRS.TargetRetention <= 0 || t.FSRS.TargetRetention >= 1 {
		return fmt.Errorf("tuning: fsrs.target_retention must be in (0,1)")
	}
	if t.Hybrid.Vector < 0 || t.Hybrid.Lexical < 0 || t.Hybrid.Vector+t.Hybrid.Lexical == 0 {
		return fmt.Errorf("tuning: hybrid weights must be non-negative and not both zero")
	}
	if t.TopK <= 0 || t.TopN <= 0 {
		return fmt.Errorf("tuning: top_k and top_n must be positive")
	}
	return nil
}
