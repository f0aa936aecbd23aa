package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BehavioralSignal is an append-only raw event from the learning UI.
type BehavioralSignal struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID         `gorm:"type:uuid;not null;index:idx_signal_session_child" json:"session_id"`
	ChildID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_signal_session_child" json:"child_id"`
	SignalType SignalType        `gorm:"column:signal_type;not null" json:"signal_type"`
	Value      float64           `gorm:"column:value;not null" json:"value"`
	RawPayload datatypes.JSONMap `gorm:"column:raw_payload" json:"raw_payload,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (BehavioralSignal) TableName() string { return "behavioral_signals" }

func (s *BehavioralSignal) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// AdaptiveState is a point-in-time snapshot of a child's state. Rows are
// never updated; the current state is the newest row for the child.
type AdaptiveState struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_state_child_recorded" json:"child_id"`
	SessionID      *uuid.UUID `gorm:"type:uuid" json:"session_id,omitempty"`
	CognitiveLoad  float64    `gorm:"column:cognitive_load;not null" json:"cognitive_load"`
	MoodScore      float64    `gorm:"column:mood_score;not null" json:"mood_score"`
	ReadinessScore float64    `gorm:"column:readiness_score;not null" json:"readiness_score"`
	CurrentTopic   string     `gorm:"column:current_topic" json:"current_topic,omitempty"`
	RecordedAt     time.Time  `gorm:"column:recorded_at;not null;index:idx_state_child_recorded" json:"recorded_at"`
}

func (AdaptiveState) TableName() string { return "adaptive_state" }

func (s *AdaptiveState) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.RecordedAt.IsZero() {
		s.RecordedAt = nowUTC()
	}
	return nil
}

// DefaultAdaptiveState is assumed for a child with no recorded signals.
func DefaultAdaptiveState(childID uuid.UUID) *AdaptiveState {
	return &AdaptiveState{
		ChildID:        childID,
		CognitiveLoad:  0.3,
		MoodScore:      0.2,
		ReadinessScore: 0.8,
	}
}
