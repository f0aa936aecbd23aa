package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type ChildRepo interface {
	Create(dbc dbctx.Context, c *domain.ChildProfile) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChildProfile, error)
	ListByCaregiver(dbc dbctx.Context, caregiverID uuid.UUID) ([]*domain.ChildProfile, error)
}

type childRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChildRepo(db *gorm.DB, baseLog *logger.Logger) ChildRepo {
	return &childRepo{db: db, log: baseLog.With("repo", "ChildRepo")}
}

func (r *childRepo) Create(dbc dbctx.Context, c *domain.ChildProfile) error {
	return MapError("children.create", pick(r.db, dbc).Create(c).Error)
}

// GetByID returns nil, nil when the child does not exist.
func (r *childRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChildProfile, error) {
	var out domain.ChildProfile
	err := pick(r.db, dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("children.get", err)
	}
	return &out, nil
}

func (r *childRepo) ListByCaregiver(dbc dbctx.Context, caregiverID uuid.UUID) ([]*domain.ChildProfile, error) {
	var out []*domain.ChildProfile
	if err := pick(r.db, dbc).
		Where("caregiver_id = ?", caregiverID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("children.list", err)
	}
	return out, nil
}

type NeuroProfileRepo interface {
	GetByChild(dbc dbctx.Context, childID uuid.UUID) (*domain.NeuroProfile, error)
	// Upsert replaces the child's profile, creating it on first write.
	Upsert(dbc dbctx.Context, p *domain.NeuroProfile) error
}

type neuroProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNeuroProfileRepo(db *gorm.DB, baseLog *logger.Logger) NeuroProfileRepo {
	return &neuroProfileRepo{db: db, log: baseLog.With("repo", "NeuroProfileRepo")}
}

func (r *neuroProfileRepo) GetByChild(dbc dbctx.Context, childID uuid.UUID) (*domain.NeuroProfile, error) {
	var out domain.NeuroProfile
	err := pick(r.db, dbc).Where("child_id = ?", childID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("neuro_profiles.get", err)
	}
	return &out, nil
}

func (r *neuroProfileRepo) Upsert(dbc dbctx.Context, p *domain.NeuroProfile) error {
	err := pick(r.db, dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "child_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"diagnoses", "attention_span_mins", "preferred_modalities", "communication_style",
			"sensory_thresholds", "ui_preferences", "hyperfocus_topics", "frustration_threshold", "updated_at",
		}),
	}).Create(p).Error
	return MapError("neuro_profiles.upsert", err)
}

type DisabilityRepo interface {
	Create(dbc dbctx.Context, d *domain.ChildDisability) error
	// ListByChild returns disabilities in insertion order (created_at, id).
	ListByChild(dbc dbctx.Context, childID uuid.UUID) ([]domain.ChildDisability, error)
	DeleteByType(dbc dbctx.Context, childID uuid.UUID, t domain.DisabilityType) (bool, error)
}

type disabilityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDisabilityRepo(db *gorm.DB, baseLog *logger.Logger) DisabilityRepo {
	return &disabilityRepo{db: db, log: baseLog.With("repo", "DisabilityRepo")}
}

func (r *disabilityRepo) Create(dbc dbctx.Context, d *domain.ChildDisability) error {
	return MapError("child_disabilities.create", pick(r.db, dbc).Create(d).Error)
}

func (r *disabilityRepo) ListByChild(dbc dbctx.Context, childID uuid.UUID) ([]domain.ChildDisability, error) {
	var out []domain.ChildDisability
	if err := pick(r.db, dbc).
		Where("child_id = ?", childID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("child_disabilities.list", err)
	}
	return out, nil
}

func (r *disabilityRepo) DeleteByType(dbc dbctx.Context, childID uuid.UUID, t domain.DisabilityType) (bool, error) {
	res := pick(r.db, dbc).
		Where("child_id = ? AND disability_type = ?", childID, t).
		Delete(&domain.ChildDisability{})
	if res.Error != nil {
		return false, MapError("child_disabilities.delete", res.Error)
	}
	return res.RowsAffected > 0, nil
}
