package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type ChunkRepo interface {
	Create(dbc dbctx.Context, chunks []*domain.KnowledgeChunk) ([]*domain.KnowledgeChunk, error)
	// GetByIDs returns the rows that exist, in no particular order.
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.KnowledgeChunk, error)
	// ListFiltered is the unranked filter-only query used when hybrid search
	// comes back empty.
	ListFiltered(dbc dbctx.Context, maxDifficulty int, sensoryCap, minFlesch float64, limit int) ([]*domain.KnowledgeChunk, error)
	// ListPage walks every chunk in id order for reindexing.
	ListPage(dbc dbctx.Context, after uuid.UUID, limit int) ([]*domain.KnowledgeChunk, error)
	Count(dbc dbctx.Context) (int64, error)
	SaveEmbedding(dbc dbctx.Context, c *domain.KnowledgeChunk) error
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) Create(dbc dbctx.Context, chunks []*domain.KnowledgeChunk) ([]*domain.KnowledgeChunk, error) {
	if len(chunks) == 0 {
		return []*domain.KnowledgeChunk{}, nil
	}
	if err := pick(r.db, dbc).Create(&chunks).Error; err != nil {
		return nil, MapError("knowledge_chunks.create", err)
	}
	return chunks, nil
}

func (r *chunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.KnowledgeChunk, error) {
	var out []*domain.KnowledgeChunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := pick(r.db, dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, MapError("knowledge_chunks.get_by_ids", err)
	}
	return out, nil
}

func (r *chunkRepo) ListFiltered(dbc dbctx.Context, maxDifficulty int, sensoryCap, minFlesch float64, limit int) ([]*domain.KnowledgeChunk, error) {
	var out []*domain.KnowledgeChunk
	if limit <= 0 {
		return out, nil
	}
	if err := pick(r.db, dbc).
		Where("difficulty_level <= ?", maxDifficulty).
		Where("sensory_load <= ?", sensoryCap).
		Where("flesch_score >= ?", minFlesch).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, MapError("knowledge_chunks.list_filtered", err)
	}
	return out, nil
}

func (r *chunkRepo) ListPage(dbc dbctx.Context, after uuid.UUID, limit int) ([]*domain.KnowledgeChunk, error) {
	var out []*domain.KnowledgeChunk
	q := pick(r.db, dbc).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		q = q.Where("id > ?", after)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, MapError("knowledge_chunks.list_page", err)
	}
	return out, nil
}

func (r *chunkRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := pick(r.db, dbc).Model(&domain.KnowledgeChunk{}).Count(&n).Error; err != nil {
		return 0, MapError("knowledge_chunks.count", err)
	}
	return n, nil
}

func (r *chunkRepo) SaveEmbedding(dbc dbctx.Context, c *domain.KnowledgeChunk) error {
	err := pick(r.db, dbc).Model(&domain.KnowledgeChunk{}).
		Where("id = ?", c.ID).
		UpdateColumn("embedding", c.Embedding).Error
	return MapError("knowledge_chunks.save_embedding", err)
}
