package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Caregiver struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string        `gorm:"column:email;not null;uniqueIndex" json:"email"`
	FullName     string        `gorm:"column:full_name;not null" json:"full_name"`
	PasswordHash string        `gorm:"column:password_hash;not null" json:"-"`
	Role         CaregiverRole `gorm:"column:role;not null" json:"role"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (Caregiver) TableName() string { return "caregivers" }

func (c *Caregiver) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
