package retrieval

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/weaviate"
)

// WeaviateIndex delegates hybrid ranking to Weaviate. Alpha is the vector
// weight's share of the two hybrid weights.
type WeaviateIndex struct {
	client *weaviate.Client
	alpha  float32
}

func NewWeaviateIndex(client *weaviate.Client, w Weights) *WeaviateIndex {
	alpha := float32(DefaultVectorW)
	if sum := w.Vector + w.Lexical; sum > 0 {
		alpha = float32(w.Vector / sum)
	}
	return &WeaviateIndex{client: client, alpha: alpha}
}

func (w *WeaviateIndex) Search(ctx context.Context, q Query) ([]uuid.UUID, error) {
	return w.client.Hybrid(ctx, weaviate.HybridQuery{
		Text:          q.Text,
		Vector:        q.Vector,
		Alpha:         w.alpha,
		MaxDifficulty: q.Filters.MaxDifficulty,
		SensoryCap:    q.Filters.SensoryCap,
		MinFlesch:     q.Filters.MinFlesch,
		Limit:         q.K,
	})
}

func (w *WeaviateIndex) Upsert(ctx context.Context, c *domain.KnowledgeChunk) error {
	return w.client.Upsert(ctx, weaviate.Object{
		ID:              c.ID,
		Content:         c.Content,
		Topic:           c.Topic,
		DifficultyLevel: c.DifficultyLevel,
		SensoryLoad:     c.SensoryLoad,
		FleschScore:     c.FleschScore,
		Vector:          c.EmbeddingSlice(),
	})
}
