package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChildProfile struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaregiverID     uuid.UUID `gorm:"type:uuid;not null;index" json:"caregiver_id"`
	FullName        string    `gorm:"column:full_name;not null" json:"full_name"`
	DateOfBirth     time.Time `gorm:"column:date_of_birth;not null" json:"date_of_birth"`
	PrimaryLanguage string    `gorm:"column:primary_language;not null" json:"primary_language"`
	GradeLevel      string    `gorm:"column:grade_level" json:"grade_level,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ChildProfile) TableName() string { return "child_profiles" }

func (c *ChildProfile) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.PrimaryLanguage == "" {
		c.PrimaryLanguage = "en"
	}
	return nil
}

// AgeAt is the difference in calendar years, matching how caregivers state
// a child's age on a form.
func (c *ChildProfile) AgeAt(now time.Time) int {
	if c == nil || c.DateOfBirth.IsZero() {
		return 0
	}
	return now.Year() - c.DateOfBirth.Year()
}

type NeuroProfile struct {
	ID                   uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID              uuid.UUID                             `gorm:"type:uuid;not null;uniqueIndex" json:"child_id"`
	Diagnoses            datatypes.JSONSlice[Diagnosis]        `gorm:"column:diagnoses" json:"diagnoses"`
	AttentionSpanMins    int                                   `gorm:"column:attention_span_mins;not null" json:"attention_span_mins"`
	PreferredModalities  datatypes.JSONSlice[Modality]         `gorm:"column:preferred_modalities" json:"preferred_modalities"`
	CommunicationStyle   string                                `gorm:"column:communication_style;not null" json:"communication_style"`
	SensoryThresholds    datatypes.JSONType[map[string]float64] `gorm:"column:sensory_thresholds" json:"sensory_thresholds"`
	UIPreferences        datatypes.JSONMap                     `gorm:"column:ui_preferences" json:"ui_preferences"`
	HyperfocusTopics     datatypes.JSONSlice[string]           `gorm:"column:hyperfocus_topics" json:"hyperfocus_topics"`
	FrustrationThreshold float64                               `gorm:"column:frustration_threshold;not null" json:"frustration_threshold"`
	CreatedAt            time.Time                             `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time                             `gorm:"not null" json:"updated_at"`
}

func (NeuroProfile) TableName() string { return "neuro_profiles" }

func (n *NeuroProfile) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

// DefaultNeuroProfile is what a child without a caregiver-entered profile
// is treated as.
func DefaultNeuroProfile(childID uuid.UUID) *NeuroProfile {
	return &NeuroProfile{
		ChildID:              childID,
		Diagnoses:            datatypes.JSONSlice[Diagnosis]{},
		AttentionSpanMins:    10,
		PreferredModalities:  datatypes.JSONSlice[Modality]{ModalityText},
		CommunicationStyle:   "LITERAL",
		SensoryThresholds:    datatypes.NewJSONType(map[string]float64{"visual": 0.5, "auditory": 0.5, "motion": 0.5}),
		UIPreferences:        datatypes.JSONMap{},
		HyperfocusTopics:     datatypes.JSONSlice[string]{},
		FrustrationThreshold: 0.6,
	}
}

// Threshold returns the sensory threshold for a channel, or def when unset.
func (n *NeuroProfile) Threshold(channel string, def float64) float64 {
	if n == nil {
		return def
	}
	if v, ok := n.SensoryThresholds.Data()[channel]; ok {
		return v
	}
	return def
}

func (n *NeuroProfile) HasDiagnosis(match func(Diagnosis) bool) bool {
	if n == nil {
		return false
	}
	for _, d := range n.Diagnoses {
		if match(d) {
			return true
		}
	}
	return false
}

type ChildDisability struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_child_disability_type" json:"child_id"`
	DisabilityType DisabilityType    `gorm:"column:disability_type;not null;uniqueIndex:idx_child_disability_type" json:"disability_type"`
	Severity       string            `gorm:"column:severity;not null" json:"severity"`
	Accommodations datatypes.JSONMap `gorm:"column:accommodations" json:"accommodations"`
	Notes          string            `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (ChildDisability) TableName() string { return "child_disabilities" }

func (d *ChildDisability) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	if d.Severity == "" {
		d.Severity = "MODERATE"
	}
	return nil
}
