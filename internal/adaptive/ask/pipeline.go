// Package ask runs one question through the engine: profile, rules and
// state, retrieval, reranking, prompt, generation, and the interaction log.
// Provider outages never fail a request; the child gets FallbackResponse.
package ask

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/prompt"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/rerank"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const FallbackResponse = "I'm having a little trouble right now. Please try again in a minute, " +
	"or ask your grown-up for help."

const DefaultWeakTopicsTTL = 5 * time.Minute

func WeakTopicsCacheKey(childID uuid.UUID) string { return "mastery:weak:" + childID.String() }

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Store is the persistence the pipeline reads and writes. Neuro and
// LatestState return nil without error when the child has none yet.
type Store interface {
	Child(ctx context.Context, childID uuid.UUID) (*domain.ChildProfile, error)
	Neuro(ctx context.Context, childID uuid.UUID) (*domain.NeuroProfile, error)
	Disabilities(ctx context.Context, childID uuid.UUID) ([]domain.ChildDisability, error)
	LatestState(ctx context.Context, childID uuid.UUID) (*domain.AdaptiveState, error)
	WeakTopics(ctx context.Context, childID uuid.UUID, below float64) ([]string, error)
	DueTopics(ctx context.Context, childID uuid.UUID, now time.Time) ([]string, error)
	// RecordInteraction appends the interaction and bumps the session's
	// interaction counter atomically.
	RecordInteraction(ctx context.Context, in *domain.Interaction) error
}

type Observer interface {
	ObserveAsk(outcome string, dur time.Duration)
	ObserveFallback(stage string)
}

type Config struct {
	TopK          int
	TopN          int
	WeakTopicsTTL time.Duration
}

type Request struct {
	ChildID   uuid.UUID
	SessionID uuid.UUID
	InputText string
	InputType string
}

type ChunkUsed struct {
	Topic           string            `json:"topic"`
	DifficultyLevel int               `json:"difficulty_level"`
	FormatType      domain.FormatType `json:"format_type"`
}

type Result struct {
	InteractionID      uuid.UUID                        `json:"interaction_id"`
	ResponseText       string                           `json:"response_text"`
	UIDirectives       map[string]any                   `json:"ui_directives"`
	SessionConstraints accessibility.SessionConstraints `json:"session_constraints"`
	ChunksUsed         []ChunkUsed                      `json:"chunks_used"`
	ResponseTimeMs     int                              `json:"response_time_ms"`
	Fallback           bool                             `json:"-"`
}

type Pipeline struct {
	store     Store
	rules     *accessibility.Deriver
	embedder  Embedder
	retriever *retrieval.Retriever
	reranker  *rerank.Reranker
	gen       Generator
	cache     *cache.BestEffort
	cfg       Config
	obs       Observer
	log       *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Deps struct {
	Store     Store
	Rules     *accessibility.Deriver
	Embedder  Embedder
	Retriever *retrieval.Retriever
	Reranker  *rerank.Reranker
	Generator Generator
	Cache     *cache.BestEffort
	Observer  Observer
	Log       *logger.Logger
	Now       func() time.Time
}

func NewPipeline(d Deps, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.WeakTopicsTTL <= 0 {
		cfg.WeakTopicsTTL = DefaultWeakTopicsTTL
	}
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:     d.Store,
		rules:     d.Rules,
		embedder:  d.Embedder,
		retriever: d.Retriever,
		reranker:  d.Reranker,
		gen:       d.Generator,
		cache:     d.Cache,
		cfg:       cfg,
		obs:       d.Observer,
		log:       log.With("service", "AskPipeline"),
		tracer:    otel.Tracer("neurobridge-tutor/ask"),
		now:       now,
	}
}

// context loaded before the provider calls
type askContext struct {
	child        *domain.ChildProfile
	neuro        *domain.NeuroProfile
	disabilities []domain.ChildDisability
	rules        accessibility.Rules
	state        domain.AdaptiveState
	weak         []string
	due          []string
}

// Ask answers one question. It fails only when the child does not resolve
// or persistence fails; provider outages produce the fallback response.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Result, error) {
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "ask.pipeline", trace.WithAttributes(
		attribute.String("session_id", req.SessionID.String()),
	))
	defer span.End()

	if strings.TrimSpace(req.InputText) == "" {
		return nil, domain.InvalidArgument("ask", "input_text required")
	}

	ac, err := p.load(ctx, req.ChildID, req.SessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.observe("error", start)
		return nil, err
	}

	text, chunks, err := p.answer(ctx, req, ac)
	fallback := false
	if err != nil {
		if !domain.IsCode(err, domain.CodeUnavailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.observe("error", start)
			return nil, err
		}
		p.log.Warn("Provider unavailable; answering with fallback", "child_id", req.ChildID, "error", err)
		text, chunks, fallback = FallbackResponse, nil, true
	}

	elapsed := int(p.now().Sub(start).Milliseconds())
	chunkIDs := make([]uuid.UUID, 0, len(chunks))
	used := make([]ChunkUsed, 0, len(chunks))
	for _, c := range chunks {
		chunkIDs = append(chunkIDs, c.ID)
		used = append(used, ChunkUsed{Topic: c.Topic, DifficultyLevel: c.DifficultyLevel, FormatType: c.FormatType})
	}

	inputType := req.InputType
	if inputType == "" {
		inputType = "TEXT"
	}
	interaction := &domain.Interaction{
		SessionID:         req.SessionID,
		ChildID:           req.ChildID,
		InputText:         req.InputText,
		InputType:         inputType,
		ResponseText:      text,
		RetrievedChunkIDs: chunkIDs,
		ResponseHash:      ResponseHash(text),
		ResponseTimeMs:    elapsed,
	}
	if err := p.stage(ctx, "persist", func(ctx context.Context) error {
		return p.store.RecordInteraction(ctx, interaction)
	}); err != nil {
		p.observe("error", start)
		return nil, err
	}

	outcome := "success"
	if fallback {
		outcome = "fallback"
	}
	span.SetAttributes(attribute.Bool("fallback", fallback), attribute.Int("chunks", len(used)))
	p.observe(outcome, start)

	return &Result{
		InteractionID:      interaction.ID,
		ResponseText:       text,
		UIDirectives:       ac.rules.UIDirectives,
		SessionConstraints: ac.rules.SessionConstraints,
		ChunksUsed:         used,
		ResponseTimeMs:     elapsed,
		Fallback:           fallback,
	}, nil
}

func (p *Pipeline) load(ctx context.Context, childID, sessionID uuid.UUID) (*askContext, error) {
	ac := &askContext{}
	err := p.stage(ctx, "resolve_profile", func(ctx context.Context) error {
		child, err := p.store.Child(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return domain.NotFound("ask.resolve_profile", "child")
		}
		ac.child = child
		return nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.stage(gctx, "derive_rules", func(ctx context.Context) error {
			neuro, err := p.store.Neuro(ctx, childID)
			if err != nil {
				return err
			}
			dis, err := p.store.Disabilities(ctx, childID)
			if err != nil {
				return err
			}
			ac.neuro, ac.disabilities = neuro, dis
			ac.rules = p.rules.Rules(ctx, childID, neuro, dis)
			return nil
		})
	})
	g.Go(func() error {
		return p.stage(gctx, "load_state", func(ctx context.Context) error {
			st, err := p.store.LatestState(ctx, childID)
			if err != nil {
				return err
			}
			if st == nil {
				st = domain.DefaultAdaptiveState(childID)
				st.SessionID = &sessionID
			}
			ac.state = *st
			return nil
		})
	})
	g.Go(func() error {
		return p.stage(gctx, "weak_topics", func(ctx context.Context) error {
			weak, err := p.weakTopics(ctx, childID)
			ac.weak = weak
			return err
		})
	})
	g.Go(func() error {
		return p.stage(gctx, "due_topics", func(ctx context.Context) error {
			due, err := p.store.DueTopics(ctx, childID, p.now().UTC())
			ac.due = due
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ac, nil
}

func (p *Pipeline) weakTopics(ctx context.Context, childID uuid.UUID) ([]string, error) {
	key := WeakTopicsCacheKey(childID)
	var topics []string
	if p.cache.GetJSON(ctx, key, &topics) {
		return topics, nil
	}
	topics, err := p.store.WeakTopics(ctx, childID, domain.WeakMasteryThreshold)
	if err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []string{}
	}
	p.cache.SetJSON(ctx, key, topics, p.cfg.WeakTopicsTTL)
	return topics, nil
}

func (p *Pipeline) answer(ctx context.Context, req Request, ac *askContext) (string, []domain.KnowledgeChunk, error) {
	var vec []float32
	if err := p.stage(ctx, "embed_query", func(ctx context.Context) error {
		var err error
		vec, err = p.embedder.Embed(ctx, req.InputText)
		return err
	}); err != nil {
		p.fallback("embed_query")
		return "", nil, err
	}

	var candidates []domain.KnowledgeChunk
	if err := p.stage(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		candidates, err = p.retriever.Retrieve(ctx, retrieval.Request{
			Vector:    vec,
			Text:      req.InputText,
			Readiness: ac.state.ReadinessScore,
			Filters:   ac.rules.ContentFilters,
			K:         p.cfg.TopK,
		})
		return err
	}); err != nil {
		if domain.IsCode(err, domain.CodeUnavailable) {
			p.fallback("retrieve")
		}
		return "", nil, err
	}

	var chunks []domain.KnowledgeChunk
	_ = p.stage(ctx, "rerank", func(context.Context) error {
		chunks = p.reranker.Rerank(candidates, rerank.Input{
			Profile:       ac.neuro,
			CognitiveLoad: ac.state.CognitiveLoad,
			WeakTopics:    ac.weak,
			TopN:          p.cfg.TopN,
		})
		return nil
	})

	system := prompt.Build(prompt.Input{
		Child:        ac.child,
		Neuro:        ac.neuro,
		Disabilities: ac.disabilities,
		State:        ac.state,
		Chunks:       chunks,
		DueTopics:    ac.due,
		PromptRules:  ac.rules.PromptRules,
		Now:          p.now(),
	})

	var text string
	if err := p.stage(ctx, "generate", func(ctx context.Context) error {
		var err error
		text, err = p.gen.Generate(ctx, system, req.InputText)
		return err
	}); err != nil {
		p.fallback("generate")
		return "", nil, err
	}
	return text, chunks, nil
}

// stage runs fn inside its own span.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "ask."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Pipeline) fallback(stage string) {
	if p.obs != nil {
		p.obs.ObserveFallback(stage)
	}
}

func (p *Pipeline) observe(outcome string, start time.Time) {
	if p.obs != nil {
		p.obs.ObserveAsk(outcome, p.now().Sub(start))
	}
}

// ResponseHash is the first 16 hex chars of md5(text).
func ResponseHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
