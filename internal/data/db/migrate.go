package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// Postgres-only indexes backing the hybrid retrieval query.
var postgresIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding
		ON knowledge_chunks USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_fts
		ON knowledge_chunks USING gin (to_tsvector('english', content))`,
}

// AutoMigrateAll creates or updates every table.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	for _, stmt := range postgresIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
