package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/ask"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const (
	defaultFlesch      = 60.0
	defaultSensoryLoad = 0.3
	reindexPageSize    = 100
)

// IngestInput is one chunk of content. The yaml tags match the file format
// read by `tutorctl ingest`.
type IngestInput struct {
	Content         string            `json:"content" yaml:"content"`
	Topic           string            `json:"topic" yaml:"topic"`
	SubjectArea     string            `json:"subject_area" yaml:"subject_area"`
	DifficultyLevel int               `json:"difficulty_level" yaml:"difficulty_level"`
	FormatType      domain.FormatType `json:"format_type" yaml:"format_type"`
	FleschScore     *float64          `json:"flesch_score" yaml:"flesch_score"`
	SensoryLoad     *float64          `json:"sensory_load" yaml:"sensory_load"`
	NeuroTags       map[string]any    `json:"neuro_tags" yaml:"neuro_tags"`
}

type IngestService interface {
	Ingest(ctx context.Context, in IngestInput) (*domain.KnowledgeChunk, error)
	// Reindex pushes every stored chunk into the search index, embedding
	// the ones stored without a vector. It returns how many were indexed.
	Reindex(ctx context.Context) (int, error)
}

type ingestService struct {
	log      *logger.Logger
	chunks   repos.ChunkRepo
	embedder ask.Embedder
	index    retrieval.Index
}

func NewIngestService(baseLog *logger.Logger, chunks repos.ChunkRepo, embedder ask.Embedder, index retrieval.Index) IngestService {
	return &ingestService{
		log:      baseLog.With("service", "IngestService"),
		chunks:   chunks,
		embedder: embedder,
		index:    index,
	}
}

func (s *ingestService) Ingest(ctx context.Context, in IngestInput) (*domain.KnowledgeChunk, error) {
	const op = "ingest"
	chunk, err := buildChunk(op, in)
	if err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return nil, err
	}
	chunk.SetEmbedding(vec)
	if _, err := s.chunks.Create(dbctx.Context{Ctx: ctx}, []*domain.KnowledgeChunk{chunk}); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, chunk); err != nil {
		// The row is stored; a later reindex will pick it up.
		s.log.Warn("Chunk stored but not indexed", "chunk_id", chunk.ID, "error", err)
	}
	s.log.Info("Chunk ingested", "chunk_id", chunk.ID, "topic", chunk.Topic)
	return chunk, nil
}

func buildChunk(op string, in IngestInput) (*domain.KnowledgeChunk, error) {
	content := trimmed(in.Content)
	if content == "" {
		return nil, domain.InvalidArgument(op, "content required")
	}
	topic := trimmed(in.Topic)
	if n := utf8.RuneCountInString(topic); n < 1 || n > 100 {
		return nil, domain.InvalidArgument(op, "topic must be 1-100 characters")
	}
	if in.DifficultyLevel < 1 || in.DifficultyLevel > 10 {
		return nil, domain.InvalidArgument(op, "difficulty_level must be 1-10")
	}
	if !in.FormatType.Valid() {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown format_type %q", in.FormatType))
	}
	flesch := defaultFlesch
	if in.FleschScore != nil {
		flesch = *in.FleschScore
	}
	sensory := defaultSensoryLoad
	if in.SensoryLoad != nil {
		sensory = *in.SensoryLoad
	}
	if sensory < 0 || sensory > 1 {
		return nil, domain.InvalidArgument(op, "sensory_load must be 0-1")
	}
	tags := datatypes.JSONMap{}
	for k, v := range in.NeuroTags {
		tags[k] = v
	}
	return &domain.KnowledgeChunk{
		ID:              uuid.New(),
		Content:         content,
		Topic:           topic,
		SubjectArea:     trimmed(in.SubjectArea),
		DifficultyLevel: in.DifficultyLevel,
		FormatType:      in.FormatType,
		FleschScore:     flesch,
		NeuroTags:       tags,
		SensoryLoad:     sensory,
	}, nil
}

func (s *ingestService) Reindex(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	after := uuid.Nil
	indexed := 0
	for {
		page, err := s.chunks.ListPage(dbc, after, reindexPageSize)
		if err != nil {
			return indexed, err
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			if c.Embedding == nil {
				vec, err := s.embedder.Embed(ctx, c.Content)
				if err != nil {
					return indexed, err
				}
				c.SetEmbedding(vec)
				if err := s.chunks.SaveEmbedding(dbc, c); err != nil {
					return indexed, err
				}
			}
			if err := s.index.Upsert(ctx, c); err != nil {
				return indexed, err
			}
			indexed++
		}
		after = page[len(page)-1].ID
	}
	s.log.Info("Reindex finished", "chunks", indexed)
	return indexed, nil
}

// WarmIndex upserts every stored chunk that already has an embedding. It
// never calls the embedder, so it is safe at boot without a provider.
func WarmIndex(ctx context.Context, chunks repos.ChunkRepo, index retrieval.Index) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	after := uuid.Nil
	indexed := 0
	for {
		page, err := chunks.ListPage(dbc, after, reindexPageSize)
		if err != nil {
			return indexed, err
		}
		if len(page) == 0 {
			return indexed, nil
		}
		for _, c := range page {
			if c.Embedding == nil {
				continue
			}
			if err := index.Upsert(ctx, c); err != nil {
				return indexed, err
			}
			indexed++
		}
		after = page[len(page)-1].ID
	}
}
