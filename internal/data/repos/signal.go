package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type SignalRepo interface {
	Create(dbc dbctx.Context, s *domain.BehavioralSignal) error
	ListBySession(dbc dbctx.Context, childID, sessionID uuid.UUID) ([]domain.BehavioralSignal, error)
}

type signalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignalRepo(db *gorm.DB, baseLog *logger.Logger) SignalRepo {
	return &signalRepo{db: db, log: baseLog.With("repo", "SignalRepo")}
}

func (r *signalRepo) Create(dbc dbctx.Context, s *domain.BehavioralSignal) error {
	return MapError("signals.create", pick(r.db, dbc).Create(s).Error)
}

func (r *signalRepo) ListBySession(dbc dbctx.Context, childID, sessionID uuid.UUID) ([]domain.BehavioralSignal, error) {
	var out []domain.BehavioralSignal
	if err := pick(r.db, dbc).
		Where("child_id = ? AND session_id = ?", childID, sessionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("signals.list", err)
	}
	return out, nil
}

type StateRepo interface {
	Append(dbc dbctx.Context, s *domain.AdaptiveState) error
	// Latest returns nil, nil for a child with no snapshots.
	Latest(dbc dbctx.Context, childID uuid.UUID) (*domain.AdaptiveState, error)
}

type stateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStateRepo(db *gorm.DB, baseLog *logger.Logger) StateRepo {
	return &stateRepo{db: db, log: baseLog.With("repo", "StateRepo")}
}

func (r *stateRepo) Append(dbc dbctx.Context, s *domain.AdaptiveState) error {
	return MapError("adaptive_state.append", pick(r.db, dbc).Create(s).Error)
}

func (r *stateRepo) Latest(dbc dbctx.Context, childID uuid.UUID) (*domain.AdaptiveState, error) {
	var out domain.AdaptiveState
	err := pick(r.db, dbc).
		Where("child_id = ?", childID).
		Order("recorded_at DESC, id DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("adaptive_state.latest", err)
	}
	return &out, nil
}
