package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// PGVectorIndex ranks rows of knowledge_chunks in Postgres by cosine
// similarity (pgvector) blended with ts_rank over the content.
type PGVectorIndex struct {
	db *gorm.DB
	w  Weights
}

func NewPGVectorIndex(db *gorm.DB, w Weights) *PGVectorIndex {
	return &PGVectorIndex{db: db, w: w}
}

const pgHybridSQL = `
	SELECT k.id
	FROM knowledge_chunks k
	WHERE k.difficulty_level <= ?
		AND k.sensory_load <= ?
		AND k.flesch_score >= ?
		AND k.embedding IS NOT NULL
	ORDER BY (1 - (k.embedding <=> CAST(? AS vector))) * %f
		+ COALESCE(ts_rank(to_tsvector('english', k.content), plainto_tsquery('english', ?)), 0) * %f DESC
	LIMIT %d;
`

func (p *PGVectorIndex) Search(ctx context.Context, q Query) ([]uuid.UUID, error) {
	if len(q.Vector) == 0 || q.K <= 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(pgHybridSQL, p.w.Vector, p.w.Lexical, q.K)

	type row struct {
		ID uuid.UUID `gorm:"column:id"`
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Raw(sql, q.Filters.MaxDifficulty, q.Filters.SensoryCap, q.Filters.MinFlesch, pgvector.NewVector(q.Vector), q.Text).
		Scan(&rows).Error
	if err != nil {
		// missing extension or index; the retriever degrades to the filter query
		return nil, domain.NewError(domain.CodeUnavailable, "retrieval.pgvector", "hybrid search failed", err)
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out, nil
}

// Upsert is a no-op: the row itself is the index entry.
func (p *PGVectorIndex) Upsert(context.Context, *domain.KnowledgeChunk) error { return nil }
