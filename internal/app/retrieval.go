package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/data/db"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

type RetrievalBackend string

const (
	RetrievalBackendPGVector RetrievalBackend = "pgvector"
	RetrievalBackendWeaviate RetrievalBackend = "weaviate"
	RetrievalBackendMemory   RetrievalBackend = "memory"
)

type RetrievalConfigErrorCode string

const (
	RetrievalConfigErrorUnknownBackend  RetrievalConfigErrorCode = "unknown_backend"
	RetrievalConfigErrorMissingWeaviate RetrievalConfigErrorCode = "missing_weaviate_host"
	RetrievalConfigErrorNeedsPostgres   RetrievalConfigErrorCode = "pgvector_requires_postgres"
)

type RetrievalConfigError struct {
	Code     RetrievalConfigErrorCode
	Backend  string
	DBDriver string
}

func (e *RetrievalConfigError) Error() string {
	if e == nil {
		return "invalid retrieval config"
	}
	return fmt.Sprintf("invalid retrieval config (code=%s backend=%q db_driver=%q)", e.Code, e.Backend, e.DBDriver)
}

// RetrievalSelection is the backend the app will run and why it was chosen.
type RetrievalSelection struct {
	Backend RetrievalBackend
	Source  string
}

// resolveRetrievalBackend picks the search index. An explicit
// RETRIEVAL_BACKEND wins; otherwise a configured Weaviate host selects
// weaviate, Postgres selects pgvector, and anything else runs in memory.
func resolveRetrievalBackend(cfg Config) (RetrievalSelection, error) {
	requested := strings.ToLower(strings.TrimSpace(cfg.RetrievalBackend))
	weaviateHost := strings.TrimSpace(cfg.Weaviate.Host)
	driver := strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if driver == "" {
		driver = db.DriverPostgres
	}

	switch RetrievalBackend(requested) {
	case "":
		switch {
		case weaviateHost != "":
			return RetrievalSelection{Backend: RetrievalBackendWeaviate, Source: "weaviate_host"}, nil
		case driver == db.DriverPostgres:
			return RetrievalSelection{Backend: RetrievalBackendPGVector, Source: "db_driver_default"}, nil
		default:
			return RetrievalSelection{Backend: RetrievalBackendMemory, Source: "db_driver_default"}, nil
		}
	case RetrievalBackendWeaviate:
		if weaviateHost == "" {
			return RetrievalSelection{}, &RetrievalConfigError{Code: RetrievalConfigErrorMissingWeaviate, Backend: requested, DBDriver: driver}
		}
		return RetrievalSelection{Backend: RetrievalBackendWeaviate, Source: "explicit"}, nil
	case RetrievalBackendPGVector:
		if driver != db.DriverPostgres {
			return RetrievalSelection{}, &RetrievalConfigError{Code: RetrievalConfigErrorNeedsPostgres, Backend: requested, DBDriver: driver}
		}
		return RetrievalSelection{Backend: RetrievalBackendPGVector, Source: "explicit"}, nil
	case RetrievalBackendMemory:
		return RetrievalSelection{Backend: RetrievalBackendMemory, Source: "explicit"}, nil
	default:
		return RetrievalSelection{}, &RetrievalConfigError{Code: RetrievalConfigErrorUnknownBackend, Backend: requested, DBDriver: driver}
	}
}

// IndexObserver receives one observation per index call.
type IndexObserver interface {
	ObserveProviderCall(provider, op, outcome string, dur time.Duration)
}

type instrumentedIndex struct {
	backend string
	inner   retrieval.Index
	obs     IndexObserver
}

func instrumentIndex(backend string, inner retrieval.Index, obs IndexObserver) retrieval.Index {
	if inner == nil {
		return nil
	}
	return &instrumentedIndex{backend: backend, inner: inner, obs: obs}
}

func (i *instrumentedIndex) Search(ctx context.Context, q retrieval.Query) ([]uuid.UUID, error) {
	start := time.Now()
	out, err := i.inner.Search(ctx, q)
	i.observe("search", err, time.Since(start))
	return out, err
}

func (i *instrumentedIndex) Upsert(ctx context.Context, chunk *domain.KnowledgeChunk) error {
	start := time.Now()
	err := i.inner.Upsert(ctx, chunk)
	i.observe("upsert", err, time.Since(start))
	return err
}

func (i *instrumentedIndex) observe(op string, err error, dur time.Duration) {
	if i.obs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	i.obs.ObserveProviderCall(i.backend, op, outcome, dur)
}
