// Package prompt composes the system prompt for the generation call.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

const (
	SectionSeparator = "\n\n---\n\n"
	MaxContextChunks = 5
	MaxChunkChars    = 800
	MaxDueTopics     = 3

	HighCognitiveLoad = 0.75
	LowMood           = -0.35
	HyperfocusReady   = 0.9
)

const (
	ruleShortest        = "CRITICAL: Give the shortest possible answer and offer a break."
	ruleEncourage       = "CRITICAL: Open with encouragement; never shame or criticise."
	ruleHyperfocus      = "Child may be in hyperfocus; offer depth extension or bonus challenge if relevant."
	generalInstructions = "GENERAL INSTRUCTIONS: Respond in the child's primary language. Be supportive. " +
		"If the question is out of scope, say you're not sure and suggest they ask their teacher."
)

// Input carries everything the prompt depends on. Nothing here is fetched.
type Input struct {
	Child        *domain.ChildProfile
	Neuro        *domain.NeuroProfile
	Disabilities []domain.ChildDisability
	State        domain.AdaptiveState
	Chunks       []domain.KnowledgeChunk
	DueTopics    []string
	PromptRules  []string
	Now          time.Time
}

// Build returns the four prompt sections joined by SectionSeparator.
func Build(in Input) string {
	sections := []string{
		profileSection(in),
		"BEHAVIORAL RULES:\n" + strings.Join(BehavioralRules(in), "\n"),
		"KNOWLEDGE CONTEXT:\n" + strings.Join(contextLines(in.Chunks), "\n\n"),
		generalInstructions,
	}
	return strings.Join(sections, SectionSeparator)
}

// BehavioralRules is the derived prompt rules plus the state-driven overrides.
func BehavioralRules(in Input) []string {
	rules := make([]string, 0, len(in.PromptRules)+4)
	rules = append(rules, in.PromptRules...)
	if in.State.CognitiveLoad > HighCognitiveLoad {
		rules = append(rules, ruleShortest)
	}
	if in.State.MoodScore < LowMood {
		rules = append(rules, ruleEncourage)
	}
	if in.State.ReadinessScore >= HyperfocusReady && in.Neuro != nil && len(in.Neuro.HyperfocusTopics) > 0 {
		rules = append(rules, ruleHyperfocus)
	}
	if len(in.DueTopics) > 0 {
		due := in.DueTopics
		if len(due) > MaxDueTopics {
			due = due[:MaxDueTopics]
		}
		rules = append(rules, fmt.Sprintf("Gentle spaced repetition nudge for topics: %s.", strings.Join(due, ", ")))
	}
	return rules
}

func profileSection(in Input) string {
	var name, lang, age string
	if in.Child != nil {
		name, lang = in.Child.FullName, in.Child.PrimaryLanguage
		if !in.Child.DateOfBirth.IsZero() {
			now := in.Now
			if now.IsZero() {
				now = time.Now()
			}
			age = fmt.Sprint(in.Child.AgeAt(now))
		}
	}

	var diags []string
	if in.Neuro != nil {
		for _, d := range in.Neuro.Diagnoses {
			diags = append(diags, string(d))
		}
	}
	var dis []string
	for _, d := range in.Disabilities {
		dis = append(dis, string(d.DisabilityType))
	}

	lines := []string{
		fmt.Sprintf("CHILD PROFILE: name=%s, age=%s, primary_language=%s", name, age, lang),
		"Diagnoses: " + orNone(diags),
		"Disabilities: " + orNone(dis),
		fmt.Sprintf("Current cognitive_load=%v, mood_score=%v.", in.State.CognitiveLoad, in.State.MoodScore),
	}
	return strings.Join(lines, "\n")
}

func contextLines(chunks []domain.KnowledgeChunk) []string {
	if len(chunks) > MaxContextChunks {
		chunks = chunks[:MaxContextChunks]
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, fmt.Sprintf("[%s | difficulty=%d | %s]\n%s", c.Topic, c.DifficultyLevel, c.FormatType, truncate(c.Content, MaxChunkChars)))
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
