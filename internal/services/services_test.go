package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/ask"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/fsrs"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/rerank"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/retrieval"
	"github.com/yungbote/neurobridge-tutor/internal/adaptive/signals"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos/testutil"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ratelimit"
)

type stubEmbedder struct{ calls int }

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return vec768(), nil
}

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(context.Context, string, string) (string, error) { return g.reply, nil }

func vec768() []float32 {
	v := make([]float32, 768)
	v[0] = 1
	return v
}

type env struct {
	db       *gorm.DB
	mem      *cache.Memory
	cache    *cache.BestEffort
	clock    time.Time
	repos    testRepos
	index    *retrieval.MemoryIndex
	embedder *stubEmbedder

	auth     AuthService
	children ChildService
	sessions SessionService
	learning LearningService
	progress ProgressService
	ingest   IngestService
}

type testRepos struct {
	caregivers   repos.CaregiverRepo
	children     repos.ChildRepo
	neuro        repos.NeuroProfileRepo
	disabilities repos.DisabilityRepo
	sessions     repos.SessionRepo
	interactions repos.InteractionRepo
	signals      repos.SignalRepo
	states       repos.StateRepo
	mastery      repos.MasteryRepo
	chunks       repos.ChunkRepo
}

func newEnv(t *testing.T, limiter ratelimit.Limiter) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	mem := cache.NewMemory()
	c := cache.NewBestEffort(mem, log, nil)
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r := testRepos{
		caregivers:   repos.NewCaregiverRepo(db, log),
		children:     repos.NewChildRepo(db, log),
		neuro:        repos.NewNeuroProfileRepo(db, log),
		disabilities: repos.NewDisabilityRepo(db, log),
		sessions:     repos.NewSessionRepo(db, log),
		interactions: repos.NewInteractionRepo(db, log),
		signals:      repos.NewSignalRepo(db, log),
		states:       repos.NewStateRepo(db, log),
		mastery:      repos.NewMasteryRepo(db, log),
		chunks:       repos.NewChunkRepo(db, log),
	}
	tx := repos.NewTxRunner(db)
	deriver := accessibility.NewDeriver(c, 0, log)
	index := retrieval.NewMemoryIndex(retrieval.DefaultWeights())
	embedder := &stubEmbedder{}

	pipeline := ask.NewPipeline(ask.Deps{
		Store: &LearningStore{
			Children:       r.children,
			NeuroProfiles:  r.neuro,
			DisabilityRows: r.disabilities,
			States:         r.states,
			Mastery:        r.mastery,
			Sessions:       r.sessions,
			Interactions:   r.interactions,
			Tx:             tx,
		},
		Rules:     deriver,
		Embedder:  embedder,
		Retriever: retrieval.NewRetriever("memory", index, r.chunks, nil, log),
		Reranker:  rerank.New(rerank.DefaultConfig()),
		Generator: stubGenerator{reply: "Fractions are parts of a whole."},
		Cache:     c,
		Log:       log,
	}, ask.Config{})

	e := &env{
		db: db, mem: mem, cache: c, clock: clock, repos: r, index: index, embedder: embedder,
		auth:     NewAuthService(log, r.caregivers, AuthConfig{SecretKey: "test-secret", BcryptCost: 4}),
		children: NewChildService(log, r.children, r.neuro, r.disabilities, deriver),
		sessions: NewSessionService(log, r.children, r.sessions, r.interactions, r.neuro, r.disabilities, deriver, c, 0),
		learning: NewLearningService(log, LearningDeps{
			Children:     r.children,
			Sessions:     r.sessions,
			Interactions: r.interactions,
			Signals:      r.signals,
			States:       r.states,
			Mastery:      r.mastery,
			Tx:           tx,
			Pipeline:     pipeline,
			Aggregator:   signals.NewAggregator(signals.DefaultWeights()),
			Scheduler:    fsrs.NewScheduler(fsrs.DefaultParams(), fsrs.WithClock(func() time.Time { return clock })),
			Limiter:      limiter,
			Cache:        c,
		}),
		progress: NewProgressService(log, r.children, r.sessions, r.interactions, r.mastery),
		ingest:   NewIngestService(log, r.chunks, embedder, index),
	}
	fixed := func() time.Time { return clock }
	e.sessions.(*sessionService).now = fixed
	e.learning.(*learningService).now = fixed
	e.progress.(*progressService).now = fixed
	return e
}

func (e *env) caregiver(t *testing.T, role domain.CaregiverRole) context.Context {
	t.Helper()
	c := &domain.Caregiver{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		FullName:     "Pat",
		PasswordHash: "x",
		Role:         role,
	}
	if err := e.repos.caregivers.Create(dbctx.Context{Ctx: context.Background()}, c); err != nil {
		t.Fatalf("create caregiver: %v", err)
	}
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{CaregiverID: c.ID, Role: string(role)})
}

func (e *env) child(t *testing.T, ctx context.Context) *domain.ChildProfile {
	t.Helper()
	child, err := e.children.Create(ctx, CreateChildInput{FullName: "Sam", DateOfBirth: "2016-04-02"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return child
}

func wantCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	if !domain.IsCode(err, code) {
		t.Fatalf("want %s, got %v", code, err)
	}
}

func TestAuthRegisterLoginRefresh(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	email := uuid.NewString() + "@Example.com"

	pair, err := e.auth.Register(ctx, RegisterInput{Email: email, FullName: "Pat", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "bearer" {
		t.Fatalf("pair: %+v", pair)
	}
	_, err = e.auth.Register(ctx, RegisterInput{Email: email, FullName: "Pat", Password: "correct horse"})
	wantCode(t, err, domain.CodeConflict)
	_, err = e.auth.Register(ctx, RegisterInput{Email: "x@example.com", FullName: "Pat", Password: "short"})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.auth.Register(ctx, RegisterInput{Email: "y@example.com", FullName: "Pat", Password: "long enough", Role: "WIZARD"})
	wantCode(t, err, domain.CodeInvalidArgument)

	if _, err := e.auth.Login(ctx, email, "correct horse"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err = e.auth.Login(ctx, email, "wrong horse")
	wantCode(t, err, domain.CodeUnauthorized)
	_, err = e.auth.Login(ctx, "nobody@example.com", "correct horse")
	wantCode(t, err, domain.CodeUnauthorized)

	authed, err := e.auth.SetContextFromToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(authed)
	if rd == nil || rd.Role != string(domain.RoleParent) {
		t.Fatalf("request data: %+v", rd)
	}
	me, err := e.auth.Me(authed)
	if err != nil || me.ID != rd.CaregiverID {
		t.Fatalf("Me: %+v %v", me, err)
	}

	_, err = e.auth.SetContextFromToken(ctx, pair.RefreshToken)
	wantCode(t, err, domain.CodeUnauthorized)
	_, err = e.auth.Refresh(ctx, pair.AccessToken)
	wantCode(t, err, domain.CodeUnauthorized)
	if _, err := e.auth.Refresh(ctx, "Bearer "+pair.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	e := newEnv(t, nil)
	other := NewAuthService(testutil.Logger(t), e.repos.caregivers, AuthConfig{SecretKey: "other-secret", BcryptCost: 4})
	pair, err := other.Register(context.Background(), RegisterInput{
		Email: uuid.NewString() + "@example.com", FullName: "Pat", Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = e.auth.SetContextFromToken(context.Background(), pair.AccessToken)
	wantCode(t, err, domain.CodeUnauthorized)
}

func TestChildOwnership(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.caregiver(t, domain.RoleParent)
	stranger := e.caregiver(t, domain.RoleTeacher)
	admin := e.caregiver(t, domain.RoleAdmin)
	child := e.child(t, owner)

	if child.PrimaryLanguage != "en" {
		t.Fatalf("default language: %q", child.PrimaryLanguage)
	}
	_, err := e.children.Get(stranger, child.ID)
	wantCode(t, err, domain.CodeForbidden)
	if _, err := e.children.Get(admin, child.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	_, err = e.children.UpsertNeuro(admin, child.ID, NeuroInput{})
	wantCode(t, err, domain.CodeForbidden)
	_, err = e.children.Get(owner, uuid.New())
	wantCode(t, err, domain.CodeNotFound)
	_, err = e.children.Get(context.Background(), child.ID)
	wantCode(t, err, domain.CodeUnauthorized)

	list, err := e.children.List(stranger)
	if err != nil || len(list) != 0 {
		t.Fatalf("stranger list: %v %v", list, err)
	}
	list, err = e.children.List(owner)
	if err != nil || len(list) != 1 {
		t.Fatalf("owner list: %v %v", list, err)
	}

	_, err = e.children.Create(owner, CreateChildInput{FullName: "Sam", DateOfBirth: "04/02/2016"})
	wantCode(t, err, domain.CodeInvalidArgument)
}

func TestNeuroUpsertInvalidatesRules(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)

	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if start.SessionConstraints.BreakEveryMins != 15 {
		t.Fatalf("permissive break: %+v", start.SessionConstraints)
	}
	if _, ok := e.cache.Get(ctx, accessibility.CacheKey(child.ID)); !ok {
		t.Fatalf("rules should be cached after start")
	}

	span := 20
	p, err := e.children.UpsertNeuro(ctx, child.ID, NeuroInput{
		Diagnoses:         []domain.Diagnosis{domain.DiagnosisADHDCombined},
		AttentionSpanMins: &span,
	})
	if err != nil {
		t.Fatalf("UpsertNeuro: %v", err)
	}
	if p.AttentionSpanMins != 20 || p.CommunicationStyle != "LITERAL" {
		t.Fatalf("profile: %+v", p)
	}
	if _, ok := e.cache.Get(ctx, accessibility.CacheKey(child.ID)); ok {
		t.Fatalf("upsert must invalidate cached rules")
	}

	again, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if again.SessionConstraints.BreakEveryMins > 10 {
		t.Fatalf("ADHD break: %+v", again.SessionConstraints)
	}

	// A second upsert updates the same row.
	p2, err := e.children.UpsertNeuro(ctx, child.ID, NeuroInput{CommunicationStyle: "GAMIFIED"})
	if err != nil {
		t.Fatalf("UpsertNeuro: %v", err)
	}
	if p2.ID != p.ID || p2.CommunicationStyle != "GAMIFIED" || len(p2.Diagnoses) != 0 {
		t.Fatalf("second upsert: %+v", p2)
	}

	bad := 500
	_, err = e.children.UpsertNeuro(ctx, child.ID, NeuroInput{AttentionSpanMins: &bad})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.children.UpsertNeuro(ctx, child.ID, NeuroInput{Diagnoses: []domain.Diagnosis{"FLU"}})
	wantCode(t, err, domain.CodeInvalidArgument)
}

func TestDisabilities(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)

	d, err := e.children.AddDisability(ctx, child.ID, DisabilityInput{
		DisabilityType: domain.DisabilityVisual,
		Accommodations: map[string]any{"screen_reader": false},
	})
	if err != nil {
		t.Fatalf("AddDisability: %v", err)
	}
	if d.Severity != "MODERATE" {
		t.Fatalf("default severity: %q", d.Severity)
	}
	_, err = e.children.AddDisability(ctx, child.ID, DisabilityInput{DisabilityType: domain.DisabilityVisual})
	wantCode(t, err, domain.CodeConflict)
	_, err = e.children.AddDisability(ctx, child.ID, DisabilityInput{DisabilityType: domain.DisabilityMotor, Severity: "EXTREME"})
	wantCode(t, err, domain.CodeInvalidArgument)

	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v, ok := start.UIDirectives["screen_reader"]; !ok || v != false {
		t.Fatalf("accommodation override lost: %+v", start.UIDirectives)
	}

	detail, err := e.children.Get(ctx, child.ID)
	if err != nil || len(detail.Disabilities) != 1 || detail.NeuroProfile != nil {
		t.Fatalf("detail: %+v %v", detail, err)
	}

	if err := e.children.RemoveDisability(ctx, child.ID, domain.DisabilityVisual); err != nil {
		t.Fatalf("RemoveDisability: %v", err)
	}
	wantCode(t, e.children.RemoveDisability(ctx, child.ID, domain.DisabilityVisual), domain.CodeNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)

	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, err := e.sessions.Get(ctx, start.SessionID)
	if err != nil || !st.Active || st.ChildID != child.ID {
		t.Fatalf("Get: %+v %v", st, err)
	}

	for _, ms := range []int{100, 201} {
		if err := e.repos.interactions.Create(dbctx.Context{Ctx: ctx}, &domain.Interaction{
			SessionID: start.SessionID, ChildID: child.ID, ResponseTimeMs: ms,
		}); err != nil {
			t.Fatalf("seed interaction: %v", err)
		}
	}

	ended, err := e.sessions.End(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.EndedAt == nil || !ended.EndedAt.Equal(e.clock) {
		t.Fatalf("ended_at: %v", ended.EndedAt)
	}
	if ended.AvgResponseTimeMs == nil || *ended.AvgResponseTimeMs != 151 {
		t.Fatalf("avg response time: %v", ended.AvgResponseTimeMs)
	}
	st, err = e.sessions.Get(ctx, start.SessionID)
	if err != nil || st.Active || st.EndedAt == nil {
		t.Fatalf("after end: %+v %v", st, err)
	}

	_, err = e.sessions.Get(ctx, uuid.New())
	wantCode(t, err, domain.CodeNotFound)
	_, err = e.sessions.End(e.caregiver(t, domain.RoleParent), start.SessionID)
	wantCode(t, err, domain.CodeForbidden)
}

func TestAskRecordsInteractionAndRateLimits(t *testing.T) {
	e := newEnv(t, ratelimit.NewLocal(1, time.Minute))
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)

	if _, err := e.ingest.Ingest(ctx, IngestInput{
		Content: "A fraction is a part of a whole.", Topic: "fractions",
		DifficultyLevel: 2, FormatType: domain.FormatExplanation,
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := e.learning.Ask(ctx, AskInput{ChildID: child.ID, SessionID: start.SessionID, InputText: "what is a fraction"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Fallback || len(res.ChunksUsed) != 1 || res.ChunksUsed[0].Topic != "fractions" {
		t.Fatalf("result: %+v", res)
	}
	it, err := e.repos.interactions.GetByID(dbctx.Context{Ctx: ctx}, res.InteractionID)
	if err != nil || it == nil || it.ResponseHash != ask.ResponseHash(res.ResponseText) {
		t.Fatalf("interaction: %+v %v", it, err)
	}
	sess, err := e.repos.sessions.GetByID(dbctx.Context{Ctx: ctx}, start.SessionID)
	if err != nil || sess.TotalInteractions != 1 {
		t.Fatalf("session counter: %+v %v", sess, err)
	}

	_, err = e.learning.Ask(ctx, AskInput{ChildID: child.ID, SessionID: start.SessionID, InputText: "again"})
	wantCode(t, err, domain.CodeRateLimited)
}

func TestAskValidation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)
	other := e.child(t, ctx)
	start, err := e.sessions.Start(ctx, other.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = e.learning.Ask(ctx, AskInput{ChildID: child.ID, SessionID: start.SessionID, InputText: "hi"})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.learning.Ask(ctx, AskInput{ChildID: child.ID, SessionID: uuid.New(), InputText: "hi"})
	wantCode(t, err, domain.CodeNotFound)
	_, err = e.learning.Ask(ctx, AskInput{ChildID: other.ID, SessionID: start.SessionID, InputText: "hi", InputType: "GESTURE"})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.learning.Ask(ctx, AskInput{ChildID: other.ID, SessionID: start.SessionID, InputText: "   "})
	wantCode(t, err, domain.CodeInvalidArgument)
}

func TestSignalAppendsState(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)
	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := e.learning.Signal(ctx, SignalInput{
		ChildID: child.ID, SessionID: start.SessionID, SignalType: domain.SignalBackspaceRate, Value: 0.9,
	}); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	scores, err := e.learning.Signal(ctx, SignalInput{
		ChildID: child.ID, SessionID: start.SessionID, SignalType: domain.SignalAbandon, Value: 1,
		RawPayload: map[string]any{"screen": "quiz"},
	})
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}

	want := signals.NewAggregator(signals.DefaultWeights()).Aggregate([]signals.Sample{
		{Type: domain.SignalBackspaceRate, Value: 0.9},
		{Type: domain.SignalAbandon, Value: 1},
	})
	if *scores != want {
		t.Fatalf("scores %+v, want %+v", *scores, want)
	}
	latest, err := e.repos.states.Latest(dbctx.Context{Ctx: ctx}, child.ID)
	if err != nil || latest == nil || latest.CognitiveLoad != want.CognitiveLoad {
		t.Fatalf("latest state: %+v %v", latest, err)
	}

	_, err = e.learning.Signal(ctx, SignalInput{ChildID: child.ID, SessionID: start.SessionID, SignalType: "BLINK"})
	wantCode(t, err, domain.CodeInvalidArgument)
}

func TestFeedbackSchedulesReview(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)
	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	it := &domain.Interaction{SessionID: start.SessionID, ChildID: child.ID, ResponseTimeMs: 10}
	if err := e.repos.interactions.Create(dbctx.Context{Ctx: ctx}, it); err != nil {
		t.Fatalf("seed interaction: %v", err)
	}
	e.cache.SetJSON(ctx, ask.WeakTopicsCacheKey(child.ID), []string{"fractions"}, time.Minute)

	res, err := e.learning.Feedback(ctx, FeedbackInput{
		InteractionID: it.ID, ChildID: child.ID, Topic: "fractions", Rating: 4, ChildReaction: "EXCITED",
	})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if res.MasteryLevel != 0.8 || res.NextReviewDays != 1 {
		t.Fatalf("first review: %+v", res)
	}
	rec, err := e.repos.mastery.Get(dbctx.Context{Ctx: ctx}, child.ID, "fractions")
	if err != nil || rec == nil || rec.ReviewCount != 1 || rec.LastReviewed == nil {
		t.Fatalf("record: %+v %v", rec, err)
	}
	if _, ok := e.cache.Get(ctx, ask.WeakTopicsCacheKey(child.ID)); ok {
		t.Fatalf("feedback must drop cached weak topics")
	}
	updated, err := e.repos.interactions.GetByID(dbctx.Context{Ctx: ctx}, it.ID)
	if err != nil || updated.EngagementScore == nil || *updated.EngagementScore != 0.5 ||
		updated.ChildReaction == nil || *updated.ChildReaction != "EXCITED" {
		t.Fatalf("engagement: %+v %v", updated, err)
	}

	res, err = e.learning.Feedback(ctx, FeedbackInput{ChildID: child.ID, Topic: "fractions", Rating: 3})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if res.MasteryLevel != 1 {
		t.Fatalf("mastery should cap at 1: %+v", res)
	}
	rec, _ = e.repos.mastery.Get(dbctx.Context{Ctx: ctx}, child.ID, "fractions")
	if rec.ReviewCount != 2 {
		t.Fatalf("review count: %d", rec.ReviewCount)
	}

	_, err = e.learning.Feedback(ctx, FeedbackInput{ChildID: child.ID, Topic: "fractions", Rating: 5})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.learning.Feedback(ctx, FeedbackInput{ChildID: child.ID, Topic: "fractions", Rating: 2, InteractionID: uuid.New()})
	wantCode(t, err, domain.CodeNotFound)
}

func TestFeedbackUsesServiceClockForSchedule(t *testing.T) {
	e := newEnv(t, nil)
	// A scheduler whose own clock is a month ahead must not shift the due date.
	e.learning.(*learningService).d.Scheduler = fsrs.NewScheduler(fsrs.DefaultParams(),
		fsrs.WithClock(func() time.Time { return e.clock.AddDate(0, 1, 0) }))
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)

	res, err := e.learning.Feedback(ctx, FeedbackInput{ChildID: child.ID, Topic: "fractions", Rating: 4})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if res.NextReviewDays != 1 {
		t.Fatalf("next review days: %v", res.NextReviewDays)
	}
	rec, err := e.repos.mastery.Get(dbctx.Context{Ctx: ctx}, child.ID, "fractions")
	if err != nil || rec == nil || rec.LastReviewed == nil || rec.NextReviewDue == nil {
		t.Fatalf("record: %+v %v", rec, err)
	}
	if !rec.LastReviewed.Equal(e.clock) {
		t.Fatalf("last reviewed %v, want %v", rec.LastReviewed, e.clock)
	}
	if got := rec.NextReviewDue.Sub(*rec.LastReviewed); got != 24*time.Hour {
		t.Fatalf("due %v after last review, want 24h", got)
	}
}

func TestProgressViews(t *testing.T) {
	e := newEnv(t, nil)
	ctx := e.caregiver(t, domain.RoleParent)
	child := e.child(t, ctx)
	start, err := e.sessions.Start(ctx, child.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	score := 0.6
	if err := e.repos.interactions.Create(dbctx.Context{Ctx: ctx}, &domain.Interaction{
		SessionID: start.SessionID, ChildID: child.ID, EngagementScore: &score,
	}); err != nil {
		t.Fatalf("seed interaction: %v", err)
	}
	for _, topic := range []string{"fractions", "decimals"} {
		if _, err := e.learning.Feedback(ctx, FeedbackInput{ChildID: child.ID, Topic: topic, Rating: 1}); err != nil {
			t.Fatalf("Feedback: %v", err)
		}
	}

	dash, err := e.progress.Dashboard(ctx, child.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(dash.MasteryRecords) != 2 || dash.TotalSessions != 1 || dash.TotalInteractions != 1 {
		t.Fatalf("dashboard: %+v", dash)
	}

	tl, err := e.progress.Timeline(ctx, child.ID, 0)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.Days != DefaultTimelineDays || len(tl.Timeline) != 1 || tl.Timeline[0].Interactions != 1 {
		t.Fatalf("timeline: %+v", tl)
	}
	_, err = e.progress.Timeline(ctx, child.ID, 400)
	wantCode(t, err, domain.CodeInvalidArgument)

	rep, err := e.progress.Report(ctx, child.ID)
	if err != nil || rep.PeriodDays != 30 || len(rep.MasterySummary) != 2 || rep.TrendData["period_days"] != 30 {
		t.Fatalf("report: %+v %v", rep, err)
	}

	q, err := e.progress.ReviewQueue(ctx, child.ID)
	if err != nil || len(q.DueTopics) != 0 {
		t.Fatalf("nothing is due yet: %+v %v", q, err)
	}
	e.progress.(*progressService).now = func() time.Time { return e.clock.Add(72 * time.Hour) }
	q, err = e.progress.ReviewQueue(ctx, child.ID)
	if err != nil || len(q.DueTopics) != 2 {
		t.Fatalf("review queue: %+v %v", q, err)
	}
}

func TestBucketByDay(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a, b := 0.4, 0.8
	rows := []*domain.Interaction{
		{CreatedAt: day1.Add(24 * time.Hour)},
		{CreatedAt: day1, EngagementScore: &a},
		{CreatedAt: day1.Add(time.Hour), EngagementScore: &b},
		{CreatedAt: day1.Add(2 * time.Hour)},
	}
	got := bucketByDay(rows)
	if len(got) != 2 || got[0].Date != "2026-03-01" || got[1].Date != "2026-03-02" {
		t.Fatalf("buckets: %+v", got)
	}
	if got[0].Interactions != 3 || got[0].AvgEngagement == nil || *got[0].AvgEngagement != 0.6 {
		t.Fatalf("day one: %+v", got[0])
	}
	if got[1].AvgEngagement != nil {
		t.Fatalf("day two has no engagement: %+v", got[1])
	}
}

func TestIngestAndReindex(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.ingest.Ingest(ctx, IngestInput{Content: "x", Topic: "t", DifficultyLevel: 11, FormatType: domain.FormatQuiz})
	wantCode(t, err, domain.CodeInvalidArgument)
	_, err = e.ingest.Ingest(ctx, IngestInput{Content: "x", Topic: "t", DifficultyLevel: 3, FormatType: "PODCAST"})
	wantCode(t, err, domain.CodeInvalidArgument)

	c, err := e.ingest.Ingest(ctx, IngestInput{Content: "Halves", Topic: "fractions", DifficultyLevel: 1, FormatType: domain.FormatStory})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if c.FleschScore != 60 || c.SensoryLoad != 0.3 || e.index.Len() != 1 {
		t.Fatalf("chunk defaults or index: %+v len=%d", c, e.index.Len())
	}

	// A chunk stored without a vector gets embedded on reindex.
	bare := testutil.SeedChunk(t, ctx, e.db, "decimals", 2, 0.1, 70)
	fresh := retrieval.NewMemoryIndex(retrieval.DefaultWeights())
	svc := NewIngestService(testutil.Logger(t), e.repos.chunks, e.embedder, fresh)
	n, err := svc.Reindex(ctx)
	if err != nil || n != 2 || fresh.Len() != 2 {
		t.Fatalf("Reindex: n=%d len=%d err=%v", n, fresh.Len(), err)
	}
	rows, err := e.repos.chunks.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{bare.ID})
	if err != nil || len(rows) != 1 || rows[0].Embedding == nil {
		t.Fatalf("embedding not persisted: %+v %v", rows, err)
	}
}

func TestUsageTracker(t *testing.T) {
	mem := cache.NewMemory()
	u := NewUsageTracker(mem, 0, 0, testutil.Logger(t))
	u.now = func() time.Time { return time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	u.RecordLLM(ctx)
	u.RecordLLM(ctx)
	u.RecordEmbed(ctx)

	got := u.Usage(ctx)
	want := Usage{Date: "2026-03-10", LLMRequests: 2, LLMDailyLimit: 60, EmbedRequests: 1, EmbedDailyLimit: 500}
	if got != want {
		t.Fatalf("usage %+v, want %+v", got, want)
	}

	none := NewUsageTracker(nil, 0, 0, testutil.Logger(t))
	none.RecordLLM(ctx)
	if none.Usage(ctx).LLMRequests != 0 {
		t.Fatalf("nil counter should count nothing")
	}
}
