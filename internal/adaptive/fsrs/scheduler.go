// Package fsrs is a simplified FSRS scheduler: per-topic memory stability and
// difficulty driven by a 1-4 rating. The update rules are intentionally
// simpler than published FSRS-4.5; only the default weight table is shared.
package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// DefaultWeights is the FSRS-4.5 default table. Only W[0..3] (initial
// stability per rating) are read by this scheduler.
var DefaultWeights = []float64{
	0.4872, 1.4003, 3.7145, 13.8206,
	5.1618, 1.2298, 0.8975, 0.031,
	1.6474, 0.1367, 1.0461,
	2.1072, 0.0793, 0.3246, 1.587,
	0.2272, 2.8755,
}

const DefaultTargetRetention = 0.9

type Params struct {
	W               []float64 `yaml:"w"`
	TargetRetention float64   `yaml:"target_retention"`
}

func DefaultParams() Params {
	w := make([]float64, len(DefaultWeights))
	copy(w, DefaultWeights)
	return Params{W: w, TargetRetention: DefaultTargetRetention}
}

// Result is the memory state after a review.
type Result struct {
	Stability      float64
	Difficulty     float64
	Retrievability float64
	IntervalDays   int
	NextReview     time.Time
}

type Scheduler struct {
	p   Params
	now func() time.Time
}

type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(p Params, opts ...Option) *Scheduler {
	if len(p.W) < 4 {
		p.W = DefaultParams().W
	}
	if p.TargetRetention <= 0 || p.TargetRetention >= 1 {
		p.TargetRetention = DefaultTargetRetention
	}
	s := &Scheduler{p: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitialReview schedules the first review of a topic.
func (s *Scheduler) InitialReview(rating Rating) (Result, error) {
	return s.InitialReviewAt(s.now(), rating)
}

// InitialReviewAt is InitialReview with the review time supplied by the
// caller, so NextReview is measured from the same instant the caller stores.
func (s *Scheduler) InitialReviewAt(now time.Time, rating Rating) (Result, error) {
	if err := validate("fsrs.initial_review", rating); err != nil {
		return Result{}, err
	}
	stability := s.p.W[rating-1]
	difficulty := 0.3 + 0.1*float64(rating-3)
	return s.result(now, stability, difficulty, 1.0), nil
}

// Review updates an existing memory state given the time since lastReviewed.
func (s *Scheduler) Review(stability, difficulty float64, lastReviewed time.Time, rating Rating) (Result, error) {
	return s.ReviewAt(s.now(), stability, difficulty, lastReviewed, rating)
}

func (s *Scheduler) ReviewAt(now time.Time, stability, difficulty float64, lastReviewed time.Time, rating Rating) (Result, error) {
	if err := validate("fsrs.review", rating); err != nil {
		return Result{}, err
	}
	elapsed := now.Sub(lastReviewed).Hours() / 24
	if elapsed < 0 {
		elapsed = 0
	}
	r := Retrievability(stability, elapsed)
	newS := s.nextStability(stability, r, rating)
	newD := nextDifficulty(difficulty, rating)
	return s.result(now, newS, newD, Retrievability(newS, 0)), nil
}

// Retrievability is the recall probability after elapsedDays.
func Retrievability(stability, elapsedDays float64) float64 {
	if stability <= 0 {
		return 0
	}
	return 1 / (1 + 0.9*(elapsedDays/stability))
}

// Interval is the whole number of days until the next review, never less
// than one.
func (s *Scheduler) Interval(stability float64) int {
	if stability <= 0 {
		return 1
	}
	days := math.Floor(stability * (math.Pow(s.p.TargetRetention, -1.0/9) - 1))
	if days < 1 {
		return 1
	}
	return int(days)
}

func (s *Scheduler) nextStability(stability, r float64, rating Rating) float64 {
	switch rating {
	case Again:
		return s.p.W[0]
	case Hard:
		return stability * 0.8
	case Good:
		return stability * (1 + 0.5*(1-r))
	default:
		return stability * (1 + 1.2*(1-r))
	}
}

func nextDifficulty(d float64, rating Rating) float64 {
	switch rating {
	case Again:
		return math.Min(10, d+0.2)
	case Hard:
		return math.Min(10, d+0.05)
	case Easy:
		return math.Max(0.1, d-0.05)
	default:
		return d
	}
}

func (s *Scheduler) result(now time.Time, stability, difficulty, r float64) Result {
	interval := s.Interval(stability)
	return Result{
		Stability:      stability,
		Difficulty:     difficulty,
		Retrievability: r,
		IntervalDays:   interval,
		NextReview:     now.UTC().Add(time.Duration(interval) * 24 * time.Hour),
	}
}

// NextMastery is the caller-side mastery update: first reviews start at
// 0.2*rating, later reviews add 0.1*rating, capped at 1.
func NextMastery(prev float64, rating Rating, first bool) float64 {
	if first {
		return math.Min(1, 0.2*float64(rating))
	}
	return math.Min(1, prev+0.1*float64(rating))
}

func validate(op string, rating Rating) error {
	if rating.IsValid() {
		return nil
	}
	return domain.NewError(domain.CodeInvalidArgument, op,
		fmt.Sprintf("rating must be between 1 and 4, got %d", int(rating)), ErrInvalidRating)
}
