// Package accessibility derives the adaptation rules for a child from the
// static neuro profile and disability list.
package accessibility

import (
	"math"
	"sort"
	"strconv"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

type ContentFilters struct {
	MaxDifficulty  int                 `json:"max_difficulty"`
	MinFlesch      float64             `json:"min_flesch"`
	SensoryCap     float64             `json:"sensory_cap"`
	AllowedFormats []domain.FormatType `json:"allowed_formats,omitempty"`
	ExcludeAudio   bool                `json:"exclude_audio,omitempty"`
	MaxWordCount   int                 `json:"max_word_count,omitempty"`
}

type SessionConstraints struct {
	MaxSessionMins int     `json:"max_session_mins"`
	BreakEveryMins int     `json:"break_every_mins"`
	TimeFactor     float64 `json:"time_factor"`
}

// Rules is the derived bundle. It is a pure function of its inputs and is
// safe to cache by child id.
type Rules struct {
	PromptRules        []string           `json:"prompt_rules"`
	UIDirectives       map[string]any     `json:"ui_directives"`
	ContentFilters     ContentFilters     `json:"content_filters"`
	SessionConstraints SessionConstraints `json:"session_constraints"`
}

// Permissive returns the starting point before any diagnosis or disability
// tightens it.
func Permissive() Rules {
	return Rules{
		PromptRules:  []string{},
		UIDirectives: map[string]any{},
		ContentFilters: ContentFilters{
			MaxDifficulty: 10,
			MinFlesch:     0,
			SensoryCap:    1.0,
		},
		SessionConstraints: SessionConstraints{
			MaxSessionMins: 60,
			BreakEveryMins: 15,
			TimeFactor:     1.0,
		},
	}
}

const defaultVisualThreshold = 0.5

// Derive builds the rules. Numeric bounds only ever tighten (min/max), so the
// result is independent of diagnosis and disability order. Accommodation
// overrides are merged last, in disability creation order; on a shared key
// the most recently added disability wins.
func Derive(profile *domain.NeuroProfile, disabilities []domain.ChildDisability) Rules {
	r := Permissive()
	applyDiagnoses(&r, profile)

	ordered := orderDisabilities(disabilities)
	for _, d := range ordered {
		applyDisability(&r, d)
	}
	for _, d := range ordered {
		for k, v := range d.Accommodations {
			r.UIDirectives[k] = v
		}
	}
	return r
}

func applyDiagnoses(r *Rules, profile *domain.NeuroProfile) {
	if profile == nil {
		return
	}
	has := func(d domain.Diagnosis) bool {
		return profile.HasDiagnosis(func(x domain.Diagnosis) bool { return x == d })
	}

	if profile.HasDiagnosis(domain.Diagnosis.IsADHD) {
		r.PromptRules = append(r.PromptRules,
			"Use at most 4 sentences per response.",
			"Use gamified framing and one clear next action.",
		)
		r.SessionConstraints.BreakEveryMins = minInt(r.SessionConstraints.BreakEveryMins, 10)
	}
	if profile.HasDiagnosis(domain.Diagnosis.IsASD) {
		r.PromptRules = append(r.PromptRules,
			"Use literal language only; no metaphors or idioms.",
			"State the goal first, then give predictable structure.",
			"Avoid open-ended questions; prefer clear choices.",
		)
	}
	if has(domain.DiagnosisDyslexia) {
		r.PromptRules = append(r.PromptRules, "Keep Flesch readability >= 70; use numbered steps only; no long passages.")
		r.ContentFilters.MinFlesch = math.Max(r.ContentFilters.MinFlesch, 70)
	}
	if has(domain.DiagnosisDyscalculia) {
		r.PromptRules = append(r.PromptRules, "Always provide visual representations for maths; step-by-step only.")
	}
	if has(domain.DiagnosisSPD) {
		vis := profile.Threshold("visual", defaultVisualThreshold)
		r.ContentFilters.SensoryCap = math.Min(r.ContentFilters.SensoryCap, vis+0.1)
		r.PromptRules = append(r.PromptRules,
			"Cap sensory load to child's visual threshold ("+strconv.FormatFloat(vis, 'f', -1, 64)+").")
		if vis < 0.4 {
			r.UIDirectives["no_emojis"] = true
		}
	}
	if has(domain.DiagnosisAnxiety) {
		r.PromptRules = append(r.PromptRules, "Use warm, reassuring tone; no time pressure; set explicit expectations.")
	}
}

func applyDisability(r *Rules, d domain.ChildDisability) {
	switch d.DisabilityType {
	case domain.DisabilityVisual:
		r.UIDirectives["screen_reader"] = accommodation(d, "screen_reader", true)
		r.UIDirectives["describe_all_visuals"] = true
		r.UIDirectives["no_color_only_cues"] = true
	case domain.DisabilityHearing:
		r.ContentFilters.ExcludeAudio = true
		r.UIDirectives["captions"] = true
		r.UIDirectives["text_only_mode"] = true
	case domain.DisabilityMotor:
		r.UIDirectives["large_targets"] = accommodation(d, "large_targets", true)
		r.UIDirectives["keyboard_only"] = true
		r.SessionConstraints.TimeFactor = math.Max(r.SessionConstraints.TimeFactor, 2.0)
	case domain.DisabilityCognitive:
		r.ContentFilters.MaxDifficulty = minInt(r.ContentFilters.MaxDifficulty, 4)
		r.ContentFilters.MinFlesch = math.Max(r.ContentFilters.MinFlesch, 70)
		r.PromptRules = append(r.PromptRules, "One instruction at a time.")
	case domain.DisabilitySpeech:
		r.UIDirectives["no_voice_input_required"] = true
		r.UIDirectives["text_or_selection_only"] = true
	case domain.DisabilityChronicFat:
		r.SessionConstraints.MaxSessionMins = minInt(r.SessionConstraints.MaxSessionMins, 20)
		r.SessionConstraints.BreakEveryMins = minInt(r.SessionConstraints.BreakEveryMins, 5)
		if r.ContentFilters.MaxWordCount == 0 || r.ContentFilters.MaxWordCount > 100 {
			r.ContentFilters.MaxWordCount = 100
		}
	}
}

func accommodation(d domain.ChildDisability, key string, def any) any {
	if v, ok := d.Accommodations[key]; ok {
		return v
	}
	return def
}

func orderDisabilities(in []domain.ChildDisability) []domain.ChildDisability {
	out := make([]domain.ChildDisability, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
