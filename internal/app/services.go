package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/ask"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/fsrs"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/rerank"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/signals"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/tuning"
	"github.com/yungbote/neurobridge-tutor/internal/observability"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ratelimit"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type Services struct {
	Auth     services.AuthService
	Child    services.ChildService
	Session  services.SessionService
	Learning services.LearningService
	Progress services.ProgressService
	Ingest   services.IngestService
	Usage    *services.UsageTracker

	Rules     *accessibility.Deriver
	Pipeline  *ask.Pipeline
	Retrieval RetrievalSelection
	Index     retrieval.Index
}

func wireIndex(ctx context.Context, log *logger.Logger, db *gorm.DB, cfg Config, tn tuning.Tuning, clients Clients) (RetrievalSelection, retrieval.Index, error) {
	sel, err := resolveRetrievalBackend(cfg)
	if err != nil {
		return RetrievalSelection{}, nil, err
	}
	var index retrieval.Index
	switch sel.Backend {
	case RetrievalBackendWeaviate:
		if clients.Weaviate == nil {
			return RetrievalSelection{}, nil, fmt.Errorf("weaviate backend selected without a client")
		}
		if err := clients.Weaviate.EnsureSchema(ctx); err != nil {
			// Search degrades to the fallback query until the class exists.
			log.Warn("weaviate schema not ensured", "error", err)
		}
		index = retrieval.NewWeaviateIndex(clients.Weaviate, tn.Hybrid)
	case RetrievalBackendPGVector:
		index = retrieval.NewPGVectorIndex(db, tn.Hybrid)
	default:
		index = retrieval.NewMemoryIndex(tn.Hybrid)
	}
	log.Info("Retrieval backend selected", "backend", sel.Backend, "source", sel.Source)
	return sel, index, nil
}

func wireServices(
	ctx context.Context,
	log *logger.Logger,
	db *gorm.DB,
	cfg Config,
	tn tuning.Tuning,
	r Repos,
	clients Clients,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	sel, rawIndex, err := wireIndex(ctx, log, db, cfg, tn, clients)
	if err != nil {
		return Services{}, err
	}
	index := instrumentIndex(string(sel.Backend), rawIndex, metrics)

	topK, topN := tn.TopK, tn.TopN
	if cfg.RetrieveTopK > 0 {
		topK = cfg.RetrieveTopK
	}
	if cfg.RerankTopN > 0 {
		topN = cfg.RerankTopN
	}
	rerankCfg := tn.Rerank
	rerankCfg.DefaultTopN = topN

	rules := accessibility.NewDeriver(clients.Cache, tn.CacheTTLs.Adaptation, log)
	pipeline := ask.NewPipeline(ask.Deps{
		Store: &services.LearningStore{
			Children:       r.Child,
			NeuroProfiles:  r.NeuroProfile,
			DisabilityRows: r.Disability,
			States:         r.State,
			Mastery:        r.Mastery,
			Sessions:       r.Session,
			Interactions:   r.Interaction,
			Tx:             r.Tx,
		},
		Rules:     rules,
		Embedder:  clients.Embedder,
		Retriever: retrieval.NewRetriever(string(sel.Backend), index, r.Chunk, metrics, log),
		Reranker:  rerank.New(rerankCfg),
		Generator: clients.Provider,
		Cache:     clients.Cache,
		Observer:  metrics,
		Log:       log,
	}, ask.Config{TopK: topK, TopN: topN, WeakTopicsTTL: tn.CacheTTLs.WeakTopics})

	var limiter ratelimit.Limiter
	if clients.Redis != nil {
		limiter = ratelimit.NewWindow(clients.Counter, "ratelimit:ask:", cfg.AskRateLimitPerMinute, time.Minute, log)
	} else {
		limiter = ratelimit.NewLocal(cfg.AskRateLimitPerMinute, time.Minute)
	}

	return Services{
		Auth:    services.NewAuthService(log, r.Caregiver, cfg.Auth),
		Child:   services.NewChildService(log, r.Child, r.NeuroProfile, r.Disability, rules),
		Session: services.NewSessionService(log, r.Child, r.Session, r.Interaction, r.NeuroProfile, r.Disability, rules, clients.Cache, tn.CacheTTLs.Session),
		Learning: services.NewLearningService(log, services.LearningDeps{
			Children:     r.Child,
			Sessions:     r.Session,
			Interactions: r.Interaction,
			Signals:      r.Signal,
			States:       r.State,
			Mastery:      r.Mastery,
			Tx:           r.Tx,
			Pipeline:     pipeline,
			Aggregator:   signals.NewAggregator(tn.Signals),
			Scheduler:    fsrs.NewScheduler(tn.FSRS),
			Limiter:      limiter,
			Cache:        clients.Cache,
			Observer:     metrics,
		}),
		Progress:  services.NewProgressService(log, r.Child, r.Session, r.Interaction, r.Mastery),
		Ingest:    services.NewIngestService(log, r.Chunk, clients.Embedder, index),
		Usage:     clients.Usage,
		Rules:     rules,
		Pipeline:  pipeline,
		Retrieval: sel,
		Index:     index,
	}, nil
}

// warmMemoryIndex loads stored chunks that already carry an embedding so
// the in-process index serves hybrid search after a restart.
func warmMemoryIndex(log *logger.Logger, r Repos, index retrieval.Index) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	n, err := services.WarmIndex(ctx, r.Chunk, index)
	if err != nil {
		log.Warn("memory index warm-up failed", "indexed", n, "error", err)
		return
	}
	log.Info("memory index warmed", "indexed", n)
}
