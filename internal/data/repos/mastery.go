package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type MasteryRepo interface {
	Get(dbc dbctx.Context, childID uuid.UUID, topic string) (*domain.MasteryRecord, error)
	// Save updates a record by ID. A record with a zero ID is upserted on
	// (child, topic) so a concurrent first review overwrites instead of
	// conflicting; m is reloaded with the stored row afterwards.
	Save(dbc dbctx.Context, m *domain.MasteryRecord) error
	ListByChild(dbc dbctx.Context, childID uuid.UUID) ([]*domain.MasteryRecord, error)
	// WeakTopics lists topics with mastery below the threshold.
	WeakTopics(dbc dbctx.Context, childID uuid.UUID, below float64) ([]string, error)
	// Due lists records due at or before now, soonest first.
	Due(dbc dbctx.Context, childID uuid.UUID, now time.Time) ([]*domain.MasteryRecord, error)
}

type masteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryRepo(db *gorm.DB, baseLog *logger.Logger) MasteryRepo {
	return &masteryRepo{db: db, log: baseLog.With("repo", "MasteryRepo")}
}

// Get returns nil, nil when no record exists for the topic.
func (r *masteryRepo) Get(dbc dbctx.Context, childID uuid.UUID, topic string) (*domain.MasteryRecord, error) {
	var out domain.MasteryRecord
	err := pick(r.db, dbc).Where("child_id = ? AND topic = ?", childID, topic).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError("mastery.get", err)
	}
	return &out, nil
}

func (r *masteryRepo) Save(dbc dbctx.Context, m *domain.MasteryRecord) error {
	tx := pick(r.db, dbc)
	if m.ID == uuid.Nil {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "child_id"}, {Name: "topic"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery_level", "stability", "difficulty", "last_reviewed",
				"next_review_due", "review_count", "updated_at",
			}),
		}).Create(m).Error
		if err != nil {
			return MapError("mastery.upsert", err)
		}
		var stored domain.MasteryRecord
		if err := tx.Where("child_id = ? AND topic = ?", m.ChildID, m.Topic).First(&stored).Error; err != nil {
			return MapError("mastery.reload", err)
		}
		*m = stored
		return nil
	}
	return MapError("mastery.update", tx.Save(m).Error)
}

func (r *masteryRepo) ListByChild(dbc dbctx.Context, childID uuid.UUID) ([]*domain.MasteryRecord, error) {
	var out []*domain.MasteryRecord
	if err := pick(r.db, dbc).
		Where("child_id = ?", childID).
		Order("topic ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("mastery.list", err)
	}
	return out, nil
}

func (r *masteryRepo) WeakTopics(dbc dbctx.Context, childID uuid.UUID, below float64) ([]string, error) {
	var out []string
	if err := pick(r.db, dbc).Model(&domain.MasteryRecord{}).
		Where("child_id = ? AND mastery_level < ?", childID, below).
		Order("topic ASC").
		Pluck("topic", &out).Error; err != nil {
		return nil, MapError("mastery.weak_topics", err)
	}
	return out, nil
}

func (r *masteryRepo) Due(dbc dbctx.Context, childID uuid.UUID, now time.Time) ([]*domain.MasteryRecord, error) {
	var out []*domain.MasteryRecord
	if err := pick(r.db, dbc).
		Where("child_id = ? AND next_review_due IS NOT NULL AND next_review_due <= ?", childID, now).
		Order("next_review_due ASC").
		Find(&out).Error; err != nil {
		return nil, MapError("mastery.due", err)
	}
	return out, nil
}
