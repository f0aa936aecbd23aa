// Package retrieval selects candidate chunks for a question: a hybrid
// vector+lexical search restricted by hard content filters, with a
// filter-only fallback when the hybrid search finds nothing.
package retrieval

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const (
	DefaultTopK       = 20
	DefaultReadiness  = 0.8
	MaxQueryTextRunes = 500
	DefaultVectorW    = 0.7
	DefaultLexicalW   = 0.3
)

// Weights blends the two relevance signals of a hybrid search.
type Weights struct {
	Vector  float64 `yaml:"vector"`
	Lexical float64 `yaml:"lexical"`
}

func DefaultWeights() Weights { return Weights{Vector: DefaultVectorW, Lexical: DefaultLexicalW} }

// Filters are the hard bounds every returned chunk satisfies.
type Filters struct {
	MaxDifficulty int
	SensoryCap    float64
	MinFlesch     float64
}

func (f Filters) Allows(c *domain.KnowledgeChunk) bool {
	return c.DifficultyLevel <= f.MaxDifficulty &&
		c.SensoryLoad <= f.SensoryCap &&
		c.FleschScore >= f.MinFlesch
}

// EffectiveFilters narrows the profile's static difficulty cap by the
// child's current readiness.
func EffectiveFilters(cf accessibility.ContentFilters, readiness float64) Filters {
	maxDiff := cf.MaxDifficulty
	if maxDiff <= 0 {
		maxDiff = 10
	}
	sensoryCap := cf.SensoryCap
	if sensoryCap <= 0 {
		sensoryCap = 1.0
	}
	return Filters{
		MaxDifficulty: EffectiveMaxDifficulty(maxDiff, readiness),
		SensoryCap:    sensoryCap,
		MinFlesch:     cf.MinFlesch,
	}
}

// EffectiveMaxDifficulty is min(static, max(1, round(readiness*10))).
func EffectiveMaxDifficulty(static int, readiness float64) int {
	if math.IsNaN(readiness) {
		readiness = DefaultReadiness
	}
	readiness = math.Max(0, math.Min(1, readiness))
	byReadiness := int(math.Round(readiness * 10))
	if byReadiness < 1 {
		byReadiness = 1
	}
	if static < byReadiness {
		return static
	}
	return byReadiness
}

type Query struct {
	Vector  []float32
	Text    string
	Filters Filters
	K       int
}

// Index ranks chunk ids for a query. It returns an empty slice, not an
// error, when nothing matches.
type Index interface {
	Search(ctx context.Context, q Query) ([]uuid.UUID, error)
	Upsert(ctx context.Context, chunk *domain.KnowledgeChunk) error
}

// ChunkStore loads chunk rows.
type ChunkStore interface {
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.KnowledgeChunk, error)
	ListFiltered(dbc dbctx.Context, maxDifficulty int, sensoryCap, minFlesch float64, limit int) ([]*domain.KnowledgeChunk, error)
}

// Observer records which retrieval path served a request.
type Observer interface {
	ObserveRetrieval(backend, path string, results int, dur time.Duration)
}

type Request struct {
	Vector    []float32
	Text      string
	Readiness float64
	Filters   accessibility.ContentFilters
	K         int
}

type Retriever struct {
	index   Index
	backend string
	chunks  ChunkStore
	obs     Observer
	log     *logger.Logger
}

func NewRetriever(backend string, index Index, chunks ChunkStore, obs Observer, baseLog *logger.Logger) *Retriever {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Retriever{
		index:   index,
		backend: backend,
		chunks:  chunks,
		obs:     obs,
		log:     baseLog.With("service", "Retriever", "backend", backend),
	}
}

// Retrieve returns up to K chunks in hybrid rank order. An unavailable
// index degrades to the fallback query instead of failing.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]domain.KnowledgeChunk, error) {
	start := time.Now()
	k := req.K
	if k <= 0 {
		k = DefaultTopK
	}
	f := EffectiveFilters(req.Filters, req.Readiness)
	q := Query{Vector: req.Vector, Text: truncateRunes(req.Text, MaxQueryTextRunes), Filters: f, K: k}

	var ids []uuid.UUID
	if r.index != nil && len(req.Vector) > 0 {
		var err error
		ids, err = r.index.Search(ctx, q)
		if err != nil {
			if !domain.IsCode(err, domain.CodeUnavailable) {
				return nil, err
			}
			r.log.Warn("Hybrid search unavailable; using fallback", "error", err)
			ids = nil
		}
	}

	if len(ids) > 0 {
		out, err := r.loadInOrder(ctx, ids, f, k)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			r.observe("hybrid", len(out), start)
			return out, nil
		}
	}

	rows, err := r.chunks.ListFiltered(dbctx.Context{Ctx: ctx}, f.MaxDifficulty, f.SensoryCap, f.MinFlesch, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.KnowledgeChunk, 0, len(rows))
	for _, c := range rows {
		if c != nil && f.Allows(c) {
			out = append(out, *c)
		}
	}
	r.observe("fallback", len(out), start)
	return out, nil
}

func (r *Retriever) loadInOrder(ctx context.Context, ids []uuid.UUID, f Filters, k int) ([]domain.KnowledgeChunk, error) {
	if len(ids) > k {
		ids = ids[:k]
	}
	rows, err := r.chunks.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.KnowledgeChunk, len(rows))
	for _, c := range rows {
		if c != nil {
			byID[c.ID] = c
		}
	}
	out := make([]domain.KnowledgeChunk, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		// An external index can lag behind the rows; re-check the bounds.
		if !ok || !f.Allows(c) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *Retriever) observe(path string, n int, start time.Time) {
	if r.obs != nil {
		r.obs.ObserveRetrieval(r.backend, path, n, time.Since(start))
	}
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
