package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

// MemoryIndex keeps chunk vectors and term sets in process. It backs the
// sqlite development setup and tests where no vector database is running.
type MemoryIndex struct {
	mu      sync.RWMutex
	w       Weights
	entries map[uuid.UUID]memEntry
}

type memEntry struct {
	chunk domain.KnowledgeChunk
	vec   []float32
	terms map[string]int
}

func NewMemoryIndex(w Weights) *MemoryIndex {
	return &MemoryIndex{w: w, entries: map[uuid.UUID]memEntry{}}
}

func (m *MemoryIndex) Upsert(_ context.Context, c *domain.KnowledgeChunk) error {
	if c == nil || c.ID == uuid.Nil {
		return domain.InvalidArgument("memory_index.upsert", "chunk id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[c.ID] = memEntry{chunk: *c, vec: c.EmbeddingSlice(), terms: termCounts(c.Content)}
	return nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Search(_ context.Context, q Query) ([]uuid.UUID, error) {
	if q.K <= 0 {
		return nil, nil
	}
	qTerms := termCounts(q.Text)

	type hit struct {
		id    uuid.UUID
		score float64
	}
	m.mu.RLock()
	hits := make([]hit, 0, len(m.entries))
	for id, e := range m.entries {
		if len(e.vec) == 0 || !q.Filters.Allows(&e.chunk) {
			continue
		}
		s := cosine(q.Vector, e.vec)*m.w.Vector + lexical(qTerms, e.terms)*m.w.Lexical
		hits = append(hits, hit{id: id, score: s})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id.String() < hits[j].id.String()
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	out := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// lexical is a saturated term-overlap score in [0,1): each query term found
// in the document contributes tf/(tf+1), normalised by query length.
func lexical(query, doc map[string]int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var s float64
	for t := range query {
		if tf := doc[t]; tf > 0 {
			s += float64(tf) / float64(tf+1)
		}
	}
	return s / float64(len(query))
}

func termCounts(s string) map[string]int {
	out := map[string]int{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 1 {
			out[f]++
		}
	}
	return out
}
