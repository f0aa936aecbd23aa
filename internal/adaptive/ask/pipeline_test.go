package ask

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/rerank"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/platform/openai"
	"github.com/yungbote/neurobridge-tutor/internal/platform/retry"
)

type fakeStore struct {
	mu           sync.Mutex
	child        *domain.ChildProfile
	neuro        *domain.NeuroProfile
	weak         []string
	weakCalls    int
	interactions []*domain.Interaction
	sessionCount map[uuid.UUID]int
}

func (s *fakeStore) Child(_ context.Context, id uuid.UUID) (*domain.ChildProfile, error) {
	if s.child == nil || s.child.ID != id {
		return nil, domain.NotFound("children.get", "child")
	}
	return s.child, nil
}
func (s *fakeStore) Neuro(context.Context, uuid.UUID) (*domain.NeuroProfile, error) {
	return s.neuro, nil
}
func (s *fakeStore) Disabilities(context.Context, uuid.UUID) ([]domain.ChildDisability, error) {
	return nil, nil
}
func (s *fakeStore) LatestState(context.Context, uuid.UUID) (*domain.AdaptiveState, error) {
	return nil, nil
}
func (s *fakeStore) WeakTopics(context.Context, uuid.UUID, float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weakCalls++
	return s.weak, nil
}
func (s *fakeStore) DueTopics(context.Context, uuid.UUID, time.Time) ([]string, error) {
	return []string{"decimals"}, nil
}
func (s *fakeStore) RecordInteraction(_ context.Context, in *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	s.interactions = append(s.interactions, in)
	if s.sessionCount == nil {
		s.sessionCount = map[uuid.UUID]int{}
	}
	s.sessionCount[in.SessionID]++
	return nil
}

type chunkStore struct{ rows []*domain.KnowledgeChunk }

func (c chunkStore) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*domain.KnowledgeChunk, error) {
	var out []*domain.KnowledgeChunk
	for _, r := range c.rows {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
func (c chunkStore) ListFiltered(_ dbctx.Context, maxDifficulty int, sensoryCap, minFlesch float64, limit int) ([]*domain.KnowledgeChunk, error) {
	return nil, nil
}

type staticEmbedder struct{ vec []float32 }

func (e staticEmbedder) Embed(context.Context, string) ([]float32, error) { return e.vec, nil }

type recordingGenerator struct {
	system string
	reply  string
}

func (g *recordingGenerator) Generate(_ context.Context, system, _ string) (string, error) {
	g.system = system
	return g.reply, nil
}

func newChild() (*domain.ChildProfile, *domain.NeuroProfile) {
	child := &domain.ChildProfile{
		ID:              uuid.New(),
		FullName:        "Sam",
		DateOfBirth:     time.Date(2016, 4, 2, 0, 0, 0, 0, time.UTC),
		PrimaryLanguage: "en",
	}
	neuro := domain.DefaultNeuroProfile(child.ID)
	neuro.Diagnoses = []domain.Diagnosis{domain.DiagnosisADHDCombined}
	return child, neuro
}

func fractionChunks() []*domain.KnowledgeChunk {
	mk := func(topic string, format domain.FormatType, difficulty int) *domain.KnowledgeChunk {
		c := &domain.KnowledgeChunk{
			ID:              uuid.New(),
			Content:         "Fractions show parts of a whole. " + topic,
			Topic:           topic,
			DifficultyLevel: difficulty,
			FormatType:      format,
			FleschScore:     80,
			SensoryLoad:     0.2,
		}
		c.SetEmbedding([]float32{1, 0})
		return c
	}
	return []*domain.KnowledgeChunk{
		mk("fractions", domain.FormatExplanation, 3),
		mk("fractions", domain.FormatQuiz, 3),
		mk("advanced fractions", domain.FormatExplanation, 10),
	}
}

func newPipeline(t *testing.T, store *fakeStore, gen Generator, c *cache.BestEffort) *Pipeline {
	t.Helper()
	rows := fractionChunks()
	idx := retrieval.NewMemoryIndex(retrieval.DefaultWeights())
	for _, r := range rows {
		if err := idx.Upsert(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return NewPipeline(Deps{
		Store:     store,
		Rules:     accessibility.NewDeriver(c, 0, logger.Nop()),
		Embedder:  staticEmbedder{vec: []float32{1, 0}},
		Retriever: retrieval.NewRetriever("memory", idx, chunkStore{rows: rows}, nil, logger.Nop()),
		Reranker:  rerank.New(rerank.DefaultConfig()),
		Generator: gen,
		Cache:     c,
		Log:       logger.Nop(),
	}, Config{TopK: 20, TopN: 5})
}

func TestAskADHDScenario(t *testing.T) {
	child, neuro := newChild()
	store := &fakeStore{child: child, neuro: neuro}
	gen := &recordingGenerator{reply: "A fraction is a part of a whole!"}
	p := newPipeline(t, store, gen, cache.NewBestEffort(cache.NewMemory(), logger.Nop(), nil))

	sessionID := uuid.New()
	res, err := p.Ask(context.Background(), Request{ChildID: child.ID, SessionID: sessionID, InputText: "explain fractions"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.ResponseText != gen.reply || res.Fallback {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.SessionConstraints.BreakEveryMins > 10 {
		t.Fatalf("ADHD break interval: %d", res.SessionConstraints.BreakEveryMins)
	}
	if !strings.Contains(gen.system, "Use at most 4 sentences per response.") ||
		!strings.Contains(gen.system, "gamified framing") {
		t.Fatalf("prompt missing ADHD rules:\n%s", gen.system)
	}
	if !strings.Contains(gen.system, "Gentle spaced repetition nudge for topics: decimals.") {
		t.Fatalf("prompt missing due-topic nudge")
	}
	// Readiness 0.8 caps difficulty at 8, so the level-10 chunk never appears.
	if len(res.ChunksUsed) != 2 {
		t.Fatalf("chunks used: %+v", res.ChunksUsed)
	}
	if res.ChunksUsed[0].FormatType != domain.FormatQuiz {
		t.Fatalf("ADHD reranking should put the quiz first: %+v", res.ChunksUsed)
	}
	if len(store.interactions) != 1 || store.sessionCount[sessionID] != 1 {
		t.Fatalf("interaction not recorded")
	}
	in := store.interactions[0]
	if in.ID != res.InteractionID || in.ResponseHash != ResponseHash(gen.reply) || len(in.RetrievedChunkIDs) != 2 {
		t.Fatalf("interaction: %+v", in)
	}
	if in.InputType != "TEXT" {
		t.Fatalf("input type default: %q", in.InputType)
	}
}

func TestAskGenerationOutageReturnsFallback(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()
	gen, err := openai.New(openai.Config{
		APIKey:  "k",
		BaseURL: srv.URL + "/v1",
		Retry:   retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
	}, logger.Nop(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	child, neuro := newChild()
	store := &fakeStore{child: child, neuro: neuro}
	p := newPipeline(t, store, gen, cache.NewBestEffort(nil, nil, nil))

	res, err := p.Ask(context.Background(), Request{ChildID: child.ID, SessionID: uuid.New(), InputText: "explain fractions"})
	if err != nil {
		t.Fatalf("generation outage must not fail the request: %v", err)
	}
	if res.ResponseText != FallbackResponse || len(res.ChunksUsed) != 0 || !res.Fallback {
		t.Fatalf("expected fallback, got %+v", res)
	}
	if calls != 3 {
		t.Fatalf("expected 3 generation attempts, got %d", calls)
	}
	if len(store.interactions) != 1 || len(store.interactions[0].RetrievedChunkIDs) != 0 {
		t.Fatalf("fallback interaction must be recorded without chunks")
	}
}

func TestAskUnknownChildIsNotFound(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(t, store, &recordingGenerator{}, cache.NewBestEffort(nil, nil, nil))
	_, err := p.Ask(context.Background(), Request{ChildID: uuid.New(), SessionID: uuid.New(), InputText: "hi"})
	if !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.interactions) != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

func TestWeakTopicsAreCached(t *testing.T) {
	child, neuro := newChild()
	store := &fakeStore{child: child, neuro: neuro, weak: []string{"fractions"}}
	p := newPipeline(t, store, &recordingGenerator{reply: "ok"}, cache.NewBestEffort(cache.NewMemory(), logger.Nop(), nil))
	for i := 0; i < 2; i++ {
		if _, err := p.Ask(context.Background(), Request{ChildID: child.ID, SessionID: uuid.New(), InputText: "fractions?"}); err != nil {
			t.Fatal(err)
		}
	}
	if store.weakCalls != 1 {
		t.Fatalf("weak topics should be served from cache, store calls=%d", store.weakCalls)
	}
}

func TestResponseHash(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	if got := ResponseHash(""); got != "d41d8cd98f00b204" {
		t.Fatalf("hash: %s", got)
	}
}
