package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

func SeedCaregiver(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.Caregiver {
	tb.Helper()
	c := &domain.Caregiver{
		ID:           uuid.New(),
		Email:        email,
		FullName:     "Pat Caregiver",
		PasswordHash: "x",
		Role:         domain.RoleParent,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed caregiver: %v", err)
	}
	return c
}

func SeedChild(tb testing.TB, ctx context.Context, tx *gorm.DB, caregiverID uuid.UUID) *domain.ChildProfile {
	tb.Helper()
	c := &domain.ChildProfile{
		ID:          uuid.New(),
		CaregiverID: caregiverID,
		FullName:    "Sam",
		DateOfBirth: time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed child: %v", err)
	}
	return c
}

func SeedChunk(tb testing.TB, ctx context.Context, tx *gorm.DB, topic string, difficulty int, sensory, flesch float64) *domain.KnowledgeChunk {
	tb.Helper()
	c := &domain.KnowledgeChunk{
		ID:              uuid.New(),
		Content:         "About " + topic,
		Topic:           topic,
		DifficultyLevel: difficulty,
		FormatType:      domain.FormatExplanation,
		FleschScore:     flesch,
		SensoryLoad:     sensory,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chunk: %v", err)
	}
	return c
}
