package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/data/db"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

func TestResolveRetrievalBackend(t *testing.T) {
	cases := []struct {
		name      string
		requested string
		driver    string
		host      string
		want      RetrievalBackend
		source    string
	}{
		{name: "postgres default", driver: db.DriverPostgres, want: RetrievalBackendPGVector, source: "db_driver_default"},
		{name: "empty driver means postgres", want: RetrievalBackendPGVector, source: "db_driver_default"},
		{name: "sqlite default", driver: db.DriverSQLite, want: RetrievalBackendMemory, source: "db_driver_default"},
		{name: "weaviate host wins", driver: db.DriverPostgres, host: "weaviate:8080", want: RetrievalBackendWeaviate, source: "weaviate_host"},
		{name: "explicit memory", requested: "memory", driver: db.DriverPostgres, host: "weaviate:8080", want: RetrievalBackendMemory, source: "explicit"},
		{name: "explicit is case insensitive", requested: " PGVector ", driver: db.DriverPostgres, want: RetrievalBackendPGVector, source: "explicit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{RetrievalBackend: tc.requested}
			cfg.DB.Driver = tc.driver
			cfg.Weaviate.Host = tc.host
			got, err := resolveRetrievalBackend(cfg)
			if err != nil {
				t.Fatalf("resolveRetrievalBackend: %v", err)
			}
			if got.Backend != tc.want || got.Source != tc.source {
				t.Fatalf("want=%s/%s got=%s/%s", tc.want, tc.source, got.Backend, got.Source)
			}
		})
	}
}

func TestResolveRetrievalBackendErrors(t *testing.T) {
	cases := []struct {
		name      string
		requested string
		driver    string
		code      RetrievalConfigErrorCode
	}{
		{name: "weaviate without host", requested: "weaviate", driver: db.DriverPostgres, code: RetrievalConfigErrorMissingWeaviate},
		{name: "pgvector on sqlite", requested: "pgvector", driver: db.DriverSQLite, code: RetrievalConfigErrorNeedsPostgres},
		{name: "unknown", requested: "pinecone", driver: db.DriverPostgres, code: RetrievalConfigErrorUnknownBackend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{RetrievalBackend: tc.requested}
			cfg.DB.Driver = tc.driver
			_, err := resolveRetrievalBackend(cfg)
			var got *RetrievalConfigError
			if !errors.As(err, &got) {
				t.Fatalf("expected RetrievalConfigError, got=%T (%v)", err, err)
			}
			if got.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, got.Code)
			}
		})
	}
}

type recordedCall struct {
	provider, op, outcome string
}

type fakeIndexObserver struct {
	calls []recordedCall
}

func (f *fakeIndexObserver) ObserveProviderCall(provider, op, outcome string, _ time.Duration) {
	f.calls = append(f.calls, recordedCall{provider, op, outcome})
}

type fakeIndex struct {
	searchErr error
	upserts   int
}

func (f *fakeIndex) Search(context.Context, retrieval.Query) ([]uuid.UUID, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []uuid.UUID{uuid.New()}, nil
}

func (f *fakeIndex) Upsert(context.Context, *domain.KnowledgeChunk) error {
	f.upserts++
	return nil
}

func TestInstrumentIndexObservesOutcomes(t *testing.T) {
	want := errors.New("index down")
	inner := &fakeIndex{searchErr: want}
	obs := &fakeIndexObserver{}
	idx := instrumentIndex("weaviate", inner, obs)

	if err := idx.Upsert(context.Background(), &domain.KnowledgeChunk{ID: uuid.New()}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := idx.Search(context.Background(), retrieval.Query{}); !errors.Is(err, want) {
		t.Fatalf("Search: want %v got %v", want, err)
	}
	if inner.upserts != 1 {
		t.Fatalf("upsert not forwarded")
	}
	wantCalls := []recordedCall{
		{"weaviate", "upsert", "success"},
		{"weaviate", "search", "error"},
	}
	if len(obs.calls) != len(wantCalls) {
		t.Fatalf("calls: %+v", obs.calls)
	}
	for i, c := range wantCalls {
		if obs.calls[i] != c {
			t.Fatalf("call %d: want %+v got %+v", i, c, obs.calls[i])
		}
	}
}

func TestInstrumentIndexNil(t *testing.T) {
	if instrumentIndex("memory", nil, nil) != nil {
		t.Fatalf("nil inner should stay nil")
	}
}

func TestUnconfiguredProviderIsUnavailable(t *testing.T) {
	p := unconfiguredProvider{}
	if _, err := p.Embed(context.Background(), "x"); !domain.IsCode(err, domain.CodeUnavailable) {
		t.Fatalf("embed: %v", err)
	}
	if _, err := p.Generate(context.Background(), "s", "u"); !domain.IsCode(err, domain.CodeUnavailable) {
		t.Fatalf("generate: %v", err)
	}
}
