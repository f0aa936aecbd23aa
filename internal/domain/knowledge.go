package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// KnowledgeChunk is a unit of retrievable content. The embedding column is a
// pgvector vector on Postgres and plain text elsewhere.
type KnowledgeChunk struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Content         string            `gorm:"column:content;not null" json:"content"`
	Embedding       *pgvector.Vector  `gorm:"column:embedding;type:vector(768)" json:"-"`
	Topic           string            `gorm:"column:topic;not null;index" json:"topic"`
	SubjectArea     string            `gorm:"column:subject_area" json:"subject_area,omitempty"`
	DifficultyLevel int               `gorm:"column:difficulty_level;not null;index" json:"difficulty_level"`
	FormatType      FormatType        `gorm:"column:format_type;not null" json:"format_type"`
	FleschScore     float64           `gorm:"column:flesch_score;not null" json:"flesch_score"`
	NeuroTags       datatypes.JSONMap `gorm:"column:neuro_tags" json:"neuro_tags"`
	SensoryLoad     float64           `gorm:"column:sensory_load;not null" json:"sensory_load"`
	AvgEngagement   float64           `gorm:"column:avg_engagement;not null" json:"avg_engagement"`
	UseCount        int               `gorm:"column:use_count;not null" json:"use_count"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (KnowledgeChunk) TableName() string { return "knowledge_chunks" }

func (c *KnowledgeChunk) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// EmbeddingSlice returns the stored vector, or nil when absent.
func (c *KnowledgeChunk) EmbeddingSlice() []float32 {
	if c == nil || c.Embedding == nil {
		return nil
	}
	return c.Embedding.Slice()
}

func (c *KnowledgeChunk) SetEmbedding(v []float32) {
	if len(v) == 0 {
		c.Embedding = nil
		return
	}
	vec := pgvector.NewVector(v)
	c.Embedding = &vec
}

// NeuroTag reads a numeric neuro tag. JSON numbers decode as float64; ints
// appear when the map was built in code.
func (c *KnowledgeChunk) NeuroTag(key string) float64 {
	if c == nil || c.NeuroTags == nil {
		return 0
	}
	switch v := c.NeuroTags[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
