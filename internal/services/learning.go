package services

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/ask"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/fsrs"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/signals"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ratelimit"
)

const (
	maxInputRunes  = 2000
	maxDueTopics   = 3
	defaultEngaged = 0.5
)

var inputTypes = map[string]bool{"TEXT": true, "VOICE": true, "SELECTION": true}

var childReactions = map[string]bool{
	"POSITIVE": true, "NEUTRAL": true, "CONFUSED": true, "FRUSTRATED": true, "EXCITED": true,
}

type AskInput struct {
	ChildID   uuid.UUID `json:"child_id"`
	SessionID uuid.UUID `json:"session_id"`
	InputText string    `json:"input_text"`
	InputType string    `json:"input_type"`
}

type SignalInput struct {
	ChildID    uuid.UUID         `json:"child_id"`
	SessionID  uuid.UUID         `json:"session_id"`
	SignalType domain.SignalType `json:"signal_type"`
	Value      float64           `json:"value"`
	RawPayload map[string]any    `json:"raw_payload"`
}

type FeedbackInput struct {
	InteractionID   uuid.UUID `json:"interaction_id"`
	ChildID         uuid.UUID `json:"child_id"`
	Topic           string    `json:"topic"`
	Rating          int       `json:"rating"`
	EngagementScore *float64  `json:"engagement_score"`
	ChildReaction   string    `json:"child_reaction"`
}

type FeedbackResult struct {
	Topic          string  `json:"topic"`
	MasteryLevel   float64 `json:"mastery_level"`
	NextReviewDays float64 `json:"next_review_days"`
}

// LearningObserver counts learning events, usually the metrics registry.
type LearningObserver interface {
	IncRateLimited(route string)
	IncSignal(signalType string)
	IncReview(rating string)
}

type LearningService interface {
	Ask(ctx context.Context, in AskInput) (*ask.Result, error)
	Signal(ctx context.Context, in SignalInput) (*signals.Scores, error)
	Feedback(ctx context.Context, in FeedbackInput) (*FeedbackResult, error)
}

type LearningDeps struct {
	Children     repos.ChildRepo
	Sessions     repos.SessionRepo
	Interactions repos.InteractionRepo
	Signals      repos.SignalRepo
	States       repos.StateRepo
	Mastery      repos.MasteryRepo
	Tx           repos.TxRunner
	Pipeline     *ask.Pipeline
	Aggregator   *signals.Aggregator
	Scheduler    *fsrs.Scheduler
	Limiter      ratelimit.Limiter
	Cache        *cache.BestEffort
	Observer     LearningObserver
}

type learningService struct {
	log   *logger.Logger
	d     LearningDeps
	now   func() time.Time
	guard childGuard
}

func NewLearningService(baseLog *logger.Logger, d LearningDeps) LearningService {
	return &learningService{
		log:   baseLog.With("service", "LearningService"),
		d:     d,
		now:   time.Now,
		guard: childGuard{children: d.Children},
	}
}

func (s *learningService) Ask(ctx context.Context, in AskInput) (*ask.Result, error) {
	const op = "learn.ask"
	if _, err := s.guard.load(ctx, op, in.ChildID, accessWrite); err != nil {
		return nil, err
	}
	text := trimmed(in.InputText)
	if text == "" || utf8.RuneCountInString(text) > maxInputRunes {
		return nil, domain.InvalidArgument(op, "input_text must be 1-2000 characters")
	}
	inputType := in.InputType
	if inputType == "" {
		inputType = "TEXT"
	}
	if !inputTypes[inputType] {
		return nil, domain.InvalidArgument(op, "input_type must be TEXT, VOICE or SELECTION")
	}
	if err := s.sessionOf(ctx, op, in.ChildID, in.SessionID); err != nil {
		return nil, err
	}
	if s.d.Limiter != nil && !s.d.Limiter.Allow(ctx, in.ChildID.String()) {
		if s.d.Observer != nil {
			s.d.Observer.IncRateLimited("ask")
		}
		return nil, domain.NewError(domain.CodeRateLimited, op, "rate limit exceeded", nil)
	}
	return s.d.Pipeline.Ask(ctx, ask.Request{
		ChildID:   in.ChildID,
		SessionID: in.SessionID,
		InputText: text,
		InputType: inputType,
	})
}

func (s *learningService) Signal(ctx context.Context, in SignalInput) (*signals.Scores, error) {
	const op = "learn.signal"
	if _, err := s.guard.load(ctx, op, in.ChildID, accessWrite); err != nil {
		return nil, err
	}
	if !in.SignalType.Valid() {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown signal_type %q", in.SignalType))
	}
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
		return nil, domain.InvalidArgument(op, "value must be a finite number")
	}
	if err := s.sessionOf(ctx, op, in.ChildID, in.SessionID); err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	sig := &domain.BehavioralSignal{
		ID:         uuid.New(),
		SessionID:  in.SessionID,
		ChildID:    in.ChildID,
		SignalType: in.SignalType,
		Value:      in.Value,
		RawPayload: datatypes.JSONMap(in.RawPayload),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.d.Signals.Create(dbc, sig); err != nil {
		return nil, err
	}
	if s.d.Observer != nil {
		s.d.Observer.IncSignal(string(in.SignalType))
	}

	rows, err := s.d.Signals.ListBySession(dbc, in.ChildID, in.SessionID)
	if err != nil {
		return nil, err
	}
	samples := make([]signals.Sample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, signals.Sample{Type: r.SignalType, Value: r.Value})
	}
	scores := s.d.Aggregator.Aggregate(samples)

	sessionID := in.SessionID
	st := &domain.AdaptiveState{
		ID:             uuid.New(),
		ChildID:        in.ChildID,
		SessionID:      &sessionID,
		CognitiveLoad:  scores.CognitiveLoad,
		MoodScore:      scores.MoodScore,
		ReadinessScore: scores.ReadinessScore,
		RecordedAt:     s.now().UTC(),
	}
	if err := s.d.States.Append(dbc, st); err != nil {
		return nil, err
	}
	return &scores, nil
}

// Feedback schedules the next review of a topic and records how the child
// took the answer. The mastery read-modify-write runs in one transaction.
func (s *learningService) Feedback(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	const op = "learn.feedback"
	if _, err := s.guard.load(ctx, op, in.ChildID, accessWrite); err != nil {
		return nil, err
	}
	topic := trimmed(in.Topic)
	if topic == "" || utf8.RuneCountInString(topic) > 100 {
		return nil, domain.InvalidArgument(op, "topic must be 1-100 characters")
	}
	rating := fsrs.Rating(in.Rating)
	if !rating.IsValid() {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("rating must be between 1 and 4, got %d", in.Rating))
	}
	engagement := defaultEngaged
	if in.EngagementScore != nil {
		engagement = *in.EngagementScore
	}
	if engagement < 0 || engagement > 1 {
		return nil, domain.InvalidArgument(op, "engagement_score must be 0-1")
	}
	var reaction *string
	if r := trimmed(in.ChildReaction); r != "" {
		if !childReactions[r] {
			return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown child_reaction %q", r))
		}
		reaction = &r
	}

	if in.InteractionID != uuid.Nil {
		it, err := s.d.Interactions.GetByID(dbctx.Context{Ctx: ctx}, in.InteractionID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, domain.NotFound(op, "interaction")
		}
		if it.ChildID != in.ChildID {
			return nil, domain.InvalidArgument(op, "interaction belongs to another child")
		}
	}

	now := s.now().UTC()
	var out FeedbackResult
	err := s.d.Tx.InTx(ctx, func(dbc dbctx.Context) error {
		rec, err := s.d.Mastery.Get(dbc, in.ChildID, topic)
		if err != nil {
			return err
		}
		var res fsrs.Result
		var mastery float64
		if rec != nil && rec.LastReviewed != nil {
			res, err = s.d.Scheduler.ReviewAt(now, rec.Stability, rec.Difficulty, *rec.LastReviewed, rating)
			mastery = fsrs.NextMastery(rec.MasteryLevel, rating, false)
		} else {
			res, err = s.d.Scheduler.InitialReviewAt(now, rating)
			mastery = fsrs.NextMastery(0, rating, true)
		}
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &domain.MasteryRecord{ChildID: in.ChildID, Topic: topic}
		}
		next := res.NextReview
		rec.Stability = res.Stability
		rec.Difficulty = res.Difficulty
		rec.LastReviewed = &now
		rec.NextReviewDue = &next
		rec.ReviewCount++
		rec.MasteryLevel = mastery
		if err := s.d.Mastery.Save(dbc, rec); err != nil {
			return err
		}
		if in.InteractionID != uuid.Nil {
			if err := s.d.Interactions.UpdateEngagement(dbc, in.InteractionID, &engagement, reaction); err != nil {
				return err
			}
		}
		out = FeedbackResult{
			Topic:          topic,
			MasteryLevel:   mastery,
			NextReviewDays: round1(next.Sub(now).Hours() / 24),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.Cache.Delete(ctx, ask.WeakTopicsCacheKey(in.ChildID))
	if s.d.Observer != nil {
		s.d.Observer.IncReview(rating.String())
	}
	return &out, nil
}

// sessionOf checks that the session exists and was started for the child.
func (s *learningService) sessionOf(ctx context.Context, op string, childID, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return domain.InvalidArgument(op, "session_id required")
	}
	sess, err := s.d.Sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return domain.NotFound(op, "session")
	}
	if sess.ChildID != childID {
		return domain.InvalidArgument(op, "session belongs to another child")
	}
	return nil
}

// LearningStore adapts the repos to what the ask pipeline reads and writes.
type LearningStore struct {
	Children       repos.ChildRepo
	NeuroProfiles  repos.NeuroProfileRepo
	DisabilityRows repos.DisabilityRepo
	States         repos.StateRepo
	Mastery        repos.MasteryRepo
	Sessions       repos.SessionRepo
	Interactions   repos.InteractionRepo
	Tx             repos.TxRunner
}

var _ ask.Store = (*LearningStore)(nil)

func (l *LearningStore) Child(ctx context.Context, childID uuid.UUID) (*domain.ChildProfile, error) {
	return l.Children.GetByID(dbctx.Context{Ctx: ctx}, childID)
}

func (l *LearningStore) Neuro(ctx context.Context, childID uuid.UUID) (*domain.NeuroProfile, error) {
	return l.NeuroProfiles.GetByChild(dbctx.Context{Ctx: ctx}, childID)
}

func (l *LearningStore) Disabilities(ctx context.Context, childID uuid.UUID) ([]domain.ChildDisability, error) {
	return l.DisabilityRows.ListByChild(dbctx.Context{Ctx: ctx}, childID)
}

func (l *LearningStore) LatestState(ctx context.Context, childID uuid.UUID) (*domain.AdaptiveState, error) {
	return l.States.Latest(dbctx.Context{Ctx: ctx}, childID)
}

func (l *LearningStore) WeakTopics(ctx context.Context, childID uuid.UUID, below float64) ([]string, error) {
	return l.Mastery.WeakTopics(dbctx.Context{Ctx: ctx}, childID, below)
}

func (l *LearningStore) DueTopics(ctx context.Context, childID uuid.UUID, now time.Time) ([]string, error) {
	due, err := l.Mastery.Due(dbctx.Context{Ctx: ctx}, childID, now)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, maxDueTopics)
	for _, m := range due {
		if len(out) == maxDueTopics {
			break
		}
		out = append(out, m.Topic)
	}
	return out, nil
}

func (l *LearningStore) RecordInteraction(ctx context.Context, in *domain.Interaction) error {
	return l.Tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := l.Interactions.Create(dbc, in); err != nil {
			return err
		}
		return l.Sessions.IncrementInteractions(dbc, in.SessionID)
	})
}
