package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, s *domain.LearningSession) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.LearningSession, error)
	IncrementInteractions(dbc dbctx.Context, id uuid.UUID) error
	End(dbc dbctx.Context, id uuid.UUID, endedAt time.Time, avgResponseTimeMs *int) error
	// CountByChild counts sessions started at or after since (zero = all).
	CountByChild(dbc dbctx.Context, childID uuid.UUID, since time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *domain.LearningSession) error {
	return MapError("sessions.create", pick(r.db, dbc).Create(s).Error)
}

// GetByID returns nil, nil when the session does not exist.
func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.LearningSession, error) {
	var out domain.LearningSession
	err := pick(r.db, dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("sessions.get", err)
	}
	return &out, nil
}

func (r *sessionRepo) IncrementInteractions(dbc dbctx.Context, id uuid.UUID) error {
	err := pick(r.db, dbc).Model(&domain.LearningSession{}).
		Where("id = ?", id).
		UpdateColumn("total_interactions", gorm.Expr("total_interactions + 1")).Error
	return MapError("sessions.increment", err)
}

func (r *sessionRepo) End(dbc dbctx.Context, id uuid.UUID, endedAt time.Time, avgResponseTimeMs *int) error {
	err := pick(r.db, dbc).Model(&domain.LearningSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"ended_at":             endedAt,
			"avg_response_time_ms": avgResponseTimeMs,
		}).Error
	return MapError("sessions.end", err)
}

func (r *sessionRepo) CountByChild(dbc dbctx.Context, childID uuid.UUID, since time.Time) (int64, error) {
	q := pick(r.db, dbc).Model(&domain.LearningSession{}).Where("child_id = ?", childID)
	if !since.IsZero() {
		q = q.Where("started_at >= ?", since)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, MapError("sessions.count", err)
	}
	return n, nil
}

type InteractionRepo interface {
	Create(dbc dbctx.Context, in *domain.Interaction) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Interaction, error)
	UpdateEngagement(dbc dbctx.Context, id uuid.UUID, score *float64, reaction *string) error
	// AvgResponseTimeMs is nil for a session with no interactions.
	AvgResponseTimeMs(dbc dbctx.Context, sessionID uuid.UUID) (*int, error)
	CountByChild(dbc dbctx.Context, childID uuid.UUID, since time.Time) (int64, error)
	ListSince(dbc dbctx.Context, childID uuid.UUID, since time.Time) ([]*domain.Interaction, error)
}

type interactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionRepo(db *gorm.DB, baseLog *logger.Logger) InteractionRepo {
	return &interactionRepo{db: db, log: baseLog.With("repo", "InteractionRepo")}
}

func (r *interactionRepo) Create(dbc dbctx.Context, in *domain.Interaction) error {
	return MapError("interactions.create", pick(r.db, dbc).Create(in).Error)
}

func (r *interactionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Interaction, error) {
	var out domain.Interaction
	err := pick(r.db, dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("interactions.get", err)
	}
	return &out, nil
}

func (r *interactionRepo) UpdateEngagement(dbc dbctx.Context, id uuid.UUID, score *float64, reaction *string) error {
	err := pick(r.db, dbc).Model(&domain.Interaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"engagement_score": score,
			"child_reaction":   reaction,
		}).Error
	return MapError("interactions.update_engagement", err)
}

func (r *interactionRepo) AvgResponseTimeMs(dbc dbctx.Context, sessionID uuid.UUID) (*int, error) {
	var row struct {
		Avg *float64
		N   int64
	}
	if err := pick(r.db, dbc).Model(&domain.Interaction{}).
		Select("AVG(response_time_ms) AS avg, COUNT(*) AS n").
		Where("session_id = ?", sessionID).
		Scan(&row).Error; err != nil {
		return nil, MapError("interactions.avg_response_time", err)
	}
	if row.N == 0 || row.Avg == nil {
		return nil, nil
	}
	v := int(*row.Avg + 0.5)
	return &v, nil
}

func (r *interactionRepo) CountByChild(dbc dbctx.Context, childID uuid.UUID, since time.Time) (int64, error) {
	q := pick(r.db, dbc).Model(&domain.Interaction{}).Where("child_id = ?", childID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, MapError("interactions.count", err)
	}
	return n, nil
}

func (r *interactionRepo) ListSince(dbc dbctx.Context, childID uuid.UUID, since time.Time) ([]*domain.Interaction, error) {
	var out []*domain.Interaction
	if err := pick(r.db, dbc).
		Select("id", "child_id", "session_id", "engagement_score", "created_at").
		Where("child_id = ? AND created_at >= ?", childID, since).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("interactions.list_since", err)
	}
	return out, nil
}
