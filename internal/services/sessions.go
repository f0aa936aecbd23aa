package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const DefaultSessionActiveTTL = 4 * time.Hour

func SessionActiveKey(sessionID uuid.UUID) string { return "session:" + sessionID.String() + ":active" }

type SessionStart struct {
	SessionID          uuid.UUID                        `json:"session_id"`
	UIDirectives       map[string]any                   `json:"ui_directives"`
	SessionConstraints accessibility.SessionConstraints `json:"session_constraints"`
}

// SessionStatus is a session row plus whether the active flag is still set.
// Active is always false when no cache is configured.
type SessionStatus struct {
	*domain.LearningSession
	Active bool `json:"active"`
}

type SessionService interface {
	Start(ctx context.Context, childID uuid.UUID) (*SessionStart, error)
	End(ctx context.Context, sessionID uuid.UUID) (*domain.LearningSession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*SessionStatus, error)
}

type sessionService struct {
	log          *logger.Logger
	guard        childGuard
	sessions     repos.SessionRepo
	interactions repos.InteractionRepo
	neuro        repos.NeuroProfileRepo
	disabilities repos.DisabilityRepo
	rules        *accessibility.Deriver
	cache        *cache.BestEffort
	activeTTL    time.Duration
	now          func() time.Time
}

func NewSessionService(
	baseLog *logger.Logger,
	children repos.ChildRepo,
	sessions repos.SessionRepo,
	interactions repos.InteractionRepo,
	neuro repos.NeuroProfileRepo,
	disabilities repos.DisabilityRepo,
	rules *accessibility.Deriver,
	c *cache.BestEffort,
	activeTTL time.Duration,
) SessionService {
	if activeTTL <= 0 {
		activeTTL = DefaultSessionActiveTTL
	}
	return &sessionService{
		log:          baseLog.With("service", "SessionService"),
		guard:        childGuard{children: children},
		sessions:     sessions,
		interactions: interactions,
		neuro:        neuro,
		disabilities: disabilities,
		rules:        rules,
		cache:        c,
		activeTTL:    activeTTL,
		now:          time.Now,
	}
}

func (s *sessionService) Start(ctx context.Context, childID uuid.UUID) (*SessionStart, error) {
	const op = "sessions.start"
	if _, err := s.guard.load(ctx, op, childID, accessWrite); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	sess := &domain.LearningSession{
		ID:        uuid.New(),
		ChildID:   childID,
		StartedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(dbc, sess); err != nil {
		return nil, err
	}

	neuro, err := s.neuro.GetByChild(dbc, childID)
	if err != nil {
		return nil, err
	}
	dis, err := s.disabilities.ListByChild(dbc, childID)
	if err != nil {
		return nil, err
	}
	rules := s.rules.Rules(ctx, childID, neuro, dis)
	s.cache.Set(ctx, SessionActiveKey(sess.ID), []byte("1"), s.activeTTL)

	s.log.Info("Learning session started", "session_id", sess.ID, "child_id", childID)
	return &SessionStart{
		SessionID:          sess.ID,
		UIDirectives:       rules.UIDirectives,
		SessionConstraints: rules.SessionConstraints,
	}, nil
}

func (s *sessionService) End(ctx context.Context, sessionID uuid.UUID) (*domain.LearningSession, error) {
	const op = "sessions.end"
	sess, err := s.owned(ctx, op, sessionID, accessWrite)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	avg, err := s.interactions.AvgResponseTimeMs(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	endedAt := s.now().UTC()
	if err := s.sessions.End(dbc, sessionID, endedAt, avg); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, SessionActiveKey(sessionID))

	sess.EndedAt = &endedAt
	sess.AvgResponseTimeMs = avg
	if sess.TopicsCovered == nil {
		sess.TopicsCovered = []string{}
	}
	s.log.Info("Learning session ended", "session_id", sessionID, "child_id", sess.ChildID,
		"total_interactions", sess.TotalInteractions)
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID uuid.UUID) (*SessionStatus, error) {
	sess, err := s.owned(ctx, "sessions.get", sessionID, accessRead)
	if err != nil {
		return nil, err
	}
	_, active := s.cache.Get(ctx, SessionActiveKey(sessionID))
	return &SessionStatus{LearningSession: sess, Active: active}, nil
}

func (s *sessionService) owned(ctx context.Context, op string, sessionID uuid.UUID, mode access) (*domain.LearningSession, error) {
	if _, err := caregiverFrom(ctx, op); err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.NotFound(op, "session")
	}
	if _, err := s.guard.load(ctx, op, sess.ChildID, mode); err != nil {
		return nil, err
	}
	return sess, nil
}
