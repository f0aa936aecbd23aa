package repos

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type CaregiverRepo interface {
	Create(dbc dbctx.Context, c *domain.Caregiver) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Caregiver, error)
	GetByEmail(dbc dbctx.Context, email string) (*domain.Caregiver, error)
}

type caregiverRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaregiverRepo(db *gorm.DB, baseLog *logger.Logger) CaregiverRepo {
	return &caregiverRepo{db: db, log: baseLog.With("repo", "CaregiverRepo")}
}

func (r *caregiverRepo) Create(dbc dbctx.Context, c *domain.Caregiver) error {
	c.Email = normalizeEmail(c.Email)
	if err := pick(r.db, dbc).Create(c).Error; err != nil {
		return MapError("caregivers.create", err)
	}
	return nil
}

// GetByID returns nil, nil when the caregiver does not exist.
func (r *caregiverRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Caregiver, error) {
	var out domain.Caregiver
	err := pick(r.db, dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("caregivers.get", err)
	}
	return &out, nil
}

func (r *caregiverRepo) GetByEmail(dbc dbctx.Context, email string) (*domain.Caregiver, error) {
	var out domain.Caregiver
	err := pick(r.db, dbc).Where("email = ?", normalizeEmail(email)).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("caregivers.get_by_email", err)
	}
	return &out, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
