package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LearningSession struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID           uuid.UUID                   `gorm:"type:uuid;not null;index" json:"child_id"`
	StartedAt         time.Time                   `gorm:"column:started_at;not null;index" json:"started_at"`
	EndedAt           *time.Time                  `gorm:"column:ended_at" json:"ended_at,omitempty"`
	TotalInteractions int                         `gorm:"column:total_interactions;not null" json:"total_interactions"`
	AvgResponseTimeMs *int                        `gorm:"column:avg_response_time_ms" json:"avg_response_time_ms,omitempty"`
	FrustrationEvents int                         `gorm:"column:frustration_events;not null" json:"frustration_events"`
	HyperfocusFlag    bool                        `gorm:"column:hyperfocus_flag;not null" json:"hyperfocus_flag"`
	SessionQuality    *float64                    `gorm:"column:session_quality" json:"session_quality,omitempty"`
	TopicsCovered     datatypes.JSONSlice[string] `gorm:"column:topics_covered" json:"topics_covered"`
}

func (LearningSession) TableName() string { return "learning_sessions" }

func (s *LearningSession) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.StartedAt.IsZero() {
		s.StartedAt = nowUTC()
	}
	return nil
}

// Interaction is one ask-pipeline invocation. Only the engagement fields
// change after creation.
type Interaction struct {
	ID                uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID         uuid.UUID                      `gorm:"type:uuid;not null;index" json:"session_id"`
	ChildID           uuid.UUID                      `gorm:"type:uuid;not null;index" json:"child_id"`
	InputText         string                         `gorm:"column:input_text" json:"input_text"`
	InputType         string                         `gorm:"column:input_type;not null" json:"input_type"`
	ResponseText      string                         `gorm:"column:response_text" json:"response_text"`
	RetrievedChunkIDs datatypes.JSONSlice[uuid.UUID] `gorm:"column:retrieved_chunk_ids" json:"retrieved_chunk_ids"`
	ResponseHash      string                         `gorm:"column:response_hash;size:16" json:"response_hash"`
	ResponseTimeMs    int                            `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	EngagementScore   *float64                       `gorm:"column:engagement_score" json:"engagement_score,omitempty"`
	ChildReaction     *string                        `gorm:"column:child_reaction" json:"child_reaction,omitempty"`
	CreatedAt         time.Time                      `gorm:"not null;index" json:"created_at"`
}

func (Interaction) TableName() string { return "interactions" }

func (i *Interaction) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	if i.InputType == "" {
		i.InputType = "TEXT"
	}
	return nil
}
