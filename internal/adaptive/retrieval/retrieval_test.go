package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
)

type fakeStore struct {
	rows []*domain.KnowledgeChunk
}

func (s *fakeStore) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*domain.KnowledgeChunk, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.KnowledgeChunk
	for _, r := range s.rows {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) ListFiltered(_ dbctx.Context, maxDifficulty int, sensoryCap, minFlesch float64, limit int) ([]*domain.KnowledgeChunk, error) {
	var out []*domain.KnowledgeChunk
	for _, r := range s.rows {
		if r.DifficultyLevel <= maxDifficulty && r.SensoryLoad <= sensoryCap && r.FleschScore >= minFlesch {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubIndex struct {
	ids []uuid.UUID
	err error
}

func (s stubIndex) Search(context.Context, Query) ([]uuid.UUID, error) { return s.ids, s.err }
func (s stubIndex) Upsert(context.Context, *domain.KnowledgeChunk) error { return nil }

type pathRecorder struct{ paths []string }

func (p *pathRecorder) ObserveRetrieval(_, path string, _ int, _ time.Duration) {
	p.paths = append(p.paths, path)
}

func mkChunk(content string, difficulty int, sensory, flesch float64, vec []float32) *domain.KnowledgeChunk {
	c := &domain.KnowledgeChunk{
		ID:              uuid.New(),
		Content:         content,
		Topic:           "fractions",
		DifficultyLevel: difficulty,
		FormatType:      domain.FormatExplanation,
		FleschScore:     flesch,
		SensoryLoad:     sensory,
	}
	c.SetEmbedding(vec)
	return c
}

func TestEffectiveMaxDifficulty(t *testing.T) {
	cases := []struct {
		static    int
		readiness float64
		want      int
	}{
		{10, 0.8, 8},
		{4, 0.8, 4},
		{10, 0.0, 1},
		{10, 0.04, 1},
		{10, 1.7, 10},
		{10, -3, 1},
		{6, 0.55, 6},
	}
	for _, c := range cases {
		if got := EffectiveMaxDifficulty(c.static, c.readiness); got != c.want {
			t.Fatalf("EffectiveMaxDifficulty(%d, %v) = %d, want %d", c.static, c.readiness, got, c.want)
		}
	}
}

func TestRetrieveNeverViolatesHardFilters(t *testing.T) {
	ctx := context.Background()
	q := []float32{1, 0, 0}
	rows := []*domain.KnowledgeChunk{
		mkChunk("fractions are parts of a whole", 3, 0.2, 80, q),
		mkChunk("fractions deep dive", 9, 0.2, 80, q),
		mkChunk("loud flashing fractions", 3, 0.9, 80, q),
		mkChunk("dense fractions treatise", 3, 0.2, 20, q),
		mkChunk("half and quarter", 2, 0.1, 90, []float32{0.5, 0.5, 0}),
	}
	idx := NewMemoryIndex(DefaultWeights())
	for _, r := range rows {
		if err := idx.Upsert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	rec := &pathRecorder{}
	ret := NewRetriever("memory", idx, &fakeStore{rows: rows}, rec, nil)

	cf := accessibility.ContentFilters{MaxDifficulty: 10, MinFlesch: 70, SensoryCap: 0.5}
	out, err := ret.Retrieve(ctx, Request{Vector: q, Text: "explain fractions", Readiness: 0.5, Filters: cf, K: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	f := EffectiveFilters(cf, 0.5)
	for _, c := range out {
		if !f.Allows(&c) {
			t.Fatalf("chunk violates filters: %+v", c)
		}
	}
	if out[0].ID != rows[0].ID {
		t.Fatalf("hybrid ranking should put the closest chunk first")
	}
	if len(rec.paths) != 1 || rec.paths[0] != "hybrid" {
		t.Fatalf("paths: %v", rec.paths)
	}
}

func TestRetrievePreservesIndexOrder(t *testing.T) {
	a := mkChunk("a", 1, 0, 80, []float32{1})
	b := mkChunk("b", 1, 0, 80, []float32{1})
	c := mkChunk("c", 1, 0, 80, []float32{1})
	store := &fakeStore{rows: []*domain.KnowledgeChunk{a, b, c}}
	ret := NewRetriever("stub", stubIndex{ids: []uuid.UUID{c.ID, a.ID, b.ID}}, store, nil, nil)

	out, err := ret.Retrieve(context.Background(), Request{Vector: []float32{1}, Readiness: 1, Filters: accessibility.Permissive().ContentFilters, K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != c.ID || out[1].ID != a.ID {
		t.Fatalf("order not preserved: %v", out)
	}
}

func TestRetrieveFallsBackWhenIndexEmptyOrUnavailable(t *testing.T) {
	rows := []*domain.KnowledgeChunk{
		mkChunk("no vector yet", 2, 0.1, 80, nil),
		mkChunk("too hard", 10, 0.1, 80, nil),
	}
	store := &fakeStore{rows: rows}
	for name, idx := range map[string]Index{
		"empty":       NewMemoryIndex(DefaultWeights()),
		"unavailable": stubIndex{err: domain.NewError(domain.CodeUnavailable, "search", "down", nil)},
	} {
		rec := &pathRecorder{}
		ret := NewRetriever(name, idx, store, rec, nil)
		out, err := ret.Retrieve(context.Background(), Request{Vector: []float32{1}, Readiness: 0.3, Filters: accessibility.Permissive().ContentFilters})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(out) != 1 || out[0].ID != rows[0].ID {
			t.Fatalf("%s: unexpected fallback rows %v", name, out)
		}
		if rec.paths[0] != "fallback" {
			t.Fatalf("%s: path %v", name, rec.paths)
		}
	}
}

func TestRetrievePropagatesNonTransientIndexErrors(t *testing.T) {
	boom := errors.New("syntax error")
	ret := NewRetriever("stub", stubIndex{err: boom}, &fakeStore{}, nil, nil)
	if _, err := ret.Retrieve(context.Background(), Request{Vector: []float32{1}, Readiness: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestQueryTextIsTruncated(t *testing.T) {
	long := make([]rune, 700)
	for i := range long {
		long[i] = 'ü'
	}
	if got := []rune(truncateRunes(string(long), MaxQueryTextRunes)); len(got) != MaxQueryTextRunes {
		t.Fatalf("len %d", len(got))
	}
}

func TestLexicalScoresOverlap(t *testing.T) {
	q := termCounts("Explain fractions please")
	if lexical(q, termCounts("fractions fractions everywhere")) <= lexical(q, termCounts("decimals only")) {
		t.Fatalf("overlapping document should score higher")
	}
}
