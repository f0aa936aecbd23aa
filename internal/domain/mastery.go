package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeakMasteryThreshold marks a topic as weak below this mastery level.
const WeakMasteryThreshold = 0.5

type MasteryRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_mastery_child_topic" json:"child_id"`
	Topic         string     `gorm:"column:topic;not null;uniqueIndex:idx_mastery_child_topic" json:"topic"`
	MasteryLevel  float64    `gorm:"column:mastery_level;not null" json:"mastery_level"`
	Stability     float64    `gorm:"column:stability;not null" json:"stability"`
	Difficulty    float64    `gorm:"column:difficulty;not null" json:"difficulty"`
	LastReviewed  *time.Time `gorm:"column:last_reviewed" json:"last_reviewed,omitempty"`
	NextReviewDue *time.Time `gorm:"column:next_review_due;index" json:"next_review_due,omitempty"`
	ReviewCount   int        `gorm:"column:review_count;not null" json:"review_count"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (MasteryRecord) TableName() string { return "mastery_records" }

func (m *MasteryRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
