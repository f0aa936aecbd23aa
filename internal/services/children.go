package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/accessibility"
	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const dateLayout = "2006-01-02"

var communicationStyles = map[string]bool{
	"LITERAL": true, "NARRATIVE": true, "VISUAL_FIRST": true, "GAMIFIED": true, "SOCRATIC": true,
}

var severities = map[string]bool{"MILD": true, "MODERATE": true, "SEVERE": true}

type CreateChildInput struct {
	FullName        string `json:"full_name"`
	DateOfBirth     string `json:"date_of_birth"`
	PrimaryLanguage string `json:"primary_language"`
	GradeLevel      string `json:"grade_level"`
}

// NeuroInput replaces the whole neuro profile. Omitted fields take the
// defaults of a child without a profile.
type NeuroInput struct {
	Diagnoses            []domain.Diagnosis `json:"diagnoses"`
	AttentionSpanMins    *int               `json:"attention_span_mins"`
	PreferredModalities  []domain.Modality  `json:"preferred_modalities"`
	CommunicationStyle   string             `json:"communication_style"`
	SensoryThresholds    map[string]float64 `json:"sensory_thresholds"`
	UIPreferences        map[string]any     `json:"ui_preferences"`
	HyperfocusTopics     []string           `json:"hyperfocus_topics"`
	FrustrationThreshold *float64           `json:"frustration_threshold"`
}

type DisabilityInput struct {
	DisabilityType domain.DisabilityType `json:"disability_type"`
	Severity       string                `json:"severity"`
	Accommodations map[string]any        `json:"accommodations"`
	Notes          string                `json:"notes"`
}

type ChildDetail struct {
	Child        *domain.ChildProfile     `json:"child"`
	NeuroProfile *domain.NeuroProfile     `json:"neuro_profile"`
	Disabilities []domain.ChildDisability `json:"disabilities"`
}

type ChildService interface {
	Create(ctx context.Context, in CreateChildInput) (*domain.ChildProfile, error)
	List(ctx context.Context) ([]*domain.ChildProfile, error)
	Get(ctx context.Context, childID uuid.UUID) (*ChildDetail, error)
	UpsertNeuro(ctx context.Context, childID uuid.UUID, in NeuroInput) (*domain.NeuroProfile, error)
	AddDisability(ctx context.Context, childID uuid.UUID, in DisabilityInput) (*domain.ChildDisability, error)
	RemoveDisability(ctx context.Context, childID uuid.UUID, t domain.DisabilityType) error
}

type childService struct {
	log          *logger.Logger
	guard        childGuard
	children     repos.ChildRepo
	neuro        repos.NeuroProfileRepo
	disabilities repos.DisabilityRepo
	rules        *accessibility.Deriver
}

func NewChildService(
	baseLog *logger.Logger,
	children repos.ChildRepo,
	neuro repos.NeuroProfileRepo,
	disabilities repos.DisabilityRepo,
	rules *accessibility.Deriver,
) ChildService {
	return &childService{
		log:          baseLog.With("service", "ChildService"),
		guard:        childGuard{children: children},
		children:     children,
		neuro:        neuro,
		disabilities: disabilities,
		rules:        rules,
	}
}

func (s *childService) Create(ctx context.Context, in CreateChildInput) (*domain.ChildProfile, error) {
	const op = "children.create"
	rd, err := caregiverFrom(ctx, op)
	if err != nil {
		return nil, err
	}
	name := trimmed(in.FullName)
	if n := utf8.RuneCountInString(name); n < 1 || n > 150 {
		return nil, domain.InvalidArgument(op, "full_name must be 1-150 characters")
	}
	dob, err := time.Parse(dateLayout, trimmed(in.DateOfBirth))
	if err != nil {
		return nil, domain.InvalidArgument(op, "date_of_birth must be YYYY-MM-DD")
	}
	lang := trimmed(in.PrimaryLanguage)
	if lang == "" {
		lang = "en"
	}
	if len(lang) > 10 || len(trimmed(in.GradeLevel)) > 10 {
		return nil, domain.InvalidArgument(op, "primary_language and grade_level are at most 10 characters")
	}
	child := &domain.ChildProfile{
		ID:              uuid.New(),
		CaregiverID:     rd.CaregiverID,
		FullName:        name,
		DateOfBirth:     dob.UTC(),
		PrimaryLanguage: lang,
		GradeLevel:      trimmed(in.GradeLevel),
	}
	if err := s.children.Create(dbctx.Context{Ctx: ctx}, child); err != nil {
		return nil, err
	}
	s.log.Info("Child profile created", "child_id", child.ID, "caregiver_id", rd.CaregiverID)
	return child, nil
}

func (s *childService) List(ctx context.Context) ([]*domain.ChildProfile, error) {
	rd, err := caregiverFrom(ctx, "children.list")
	if err != nil {
		return nil, err
	}
	out, err := s.children.ListByCaregiver(dbctx.Context{Ctx: ctx}, rd.CaregiverID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*domain.ChildProfile{}
	}
	return out, nil
}

func (s *childService) Get(ctx context.Context, childID uuid.UUID) (*ChildDetail, error) {
	child, err := s.guard.load(ctx, "children.get", childID, accessRead)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	neuro, err := s.neuro.GetByChild(dbc, childID)
	if err != nil {
		return nil, err
	}
	dis, err := s.disabilities.ListByChild(dbc, childID)
	if err != nil {
		return nil, err
	}
	if dis == nil {
		dis = []domain.ChildDisability{}
	}
	return &ChildDetail{Child: child, NeuroProfile: neuro, Disabilities: dis}, nil
}

func (s *childService) UpsertNeuro(ctx context.Context, childID uuid.UUID, in NeuroInput) (*domain.NeuroProfile, error) {
	const op = "children.upsert_neuro"
	if _, err := s.guard.load(ctx, op, childID, accessWrite); err != nil {
		return nil, err
	}
	p, err := buildNeuroProfile(op, childID, in)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.neuro.Upsert(dbc, p); err != nil {
		return nil, err
	}
	s.rules.Invalidate(ctx, childID)
	// On update the row keeps its original id, so re-read it.
	saved, err := s.neuro.GetByChild(dbc, childID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, domain.NewError(domain.CodeInternal, op, "profile missing after upsert", nil)
	}
	return saved, nil
}

func buildNeuroProfile(op string, childID uuid.UUID, in NeuroInput) (*domain.NeuroProfile, error) {
	p := domain.DefaultNeuroProfile(childID)
	p.ID = uuid.New()
	if in.Diagnoses != nil {
		for _, d := range in.Diagnoses {
			if !d.Valid() {
				return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown diagnosis %q", d))
			}
		}
		p.Diagnoses = datatypes.JSONSlice[domain.Diagnosis](in.Diagnoses)
	}
	if in.AttentionSpanMins != nil {
		if *in.AttentionSpanMins < 1 || *in.AttentionSpanMins > 120 {
			return nil, domain.InvalidArgument(op, "attention_span_mins must be 1-120")
		}
		p.AttentionSpanMins = *in.AttentionSpanMins
	}
	if in.PreferredModalities != nil {
		for _, m := range in.PreferredModalities {
			if !m.Valid() {
				return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown modality %q", m))
			}
		}
		p.PreferredModalities = datatypes.JSONSlice[domain.Modality](in.PreferredModalities)
	}
	if style := trimmed(in.CommunicationStyle); style != "" {
		if !communicationStyles[style] {
			return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown communication_style %q", style))
		}
		p.CommunicationStyle = style
	}
	if in.SensoryThresholds != nil {
		for k, v := range in.SensoryThresholds {
			if v < 0 || v > 1 {
				return nil, domain.InvalidArgument(op, fmt.Sprintf("sensory threshold %q must be 0-1", k))
			}
		}
		p.SensoryThresholds = datatypes.NewJSONType(in.SensoryThresholds)
	}
	if in.UIPreferences != nil {
		p.UIPreferences = datatypes.JSONMap(in.UIPreferences)
	}
	if in.HyperfocusTopics != nil {
		p.HyperfocusTopics = datatypes.JSONSlice[string](in.HyperfocusTopics)
	}
	if in.FrustrationThreshold != nil {
		if *in.FrustrationThreshold < 0 || *in.FrustrationThreshold > 1 {
			return nil, domain.InvalidArgument(op, "frustration_threshold must be 0-1")
		}
		p.FrustrationThreshold = *in.FrustrationThreshold
	}
	return p, nil
}

func (s *childService) AddDisability(ctx context.Context, childID uuid.UUID, in DisabilityInput) (*domain.ChildDisability, error) {
	const op = "children.add_disability"
	if _, err := s.guard.load(ctx, op, childID, accessWrite); err != nil {
		return nil, err
	}
	if !in.DisabilityType.Valid() {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown disability_type %q", in.DisabilityType))
	}
	severity := trimmed(in.Severity)
	if severity == "" {
		severity = "MODERATE"
	}
	if !severities[severity] {
		return nil, domain.InvalidArgument(op, "severity must be MILD, MODERATE or SEVERE")
	}
	acc := datatypes.JSONMap{}
	for k, v := range in.Accommodations {
		acc[k] = v
	}
	d := &domain.ChildDisability{
		ID:             uuid.New(),
		ChildID:        childID,
		DisabilityType: in.DisabilityType,
		Severity:       severity,
		Accommodations: acc,
		Notes:          trimmed(in.Notes),
	}
	if err := s.disabilities.Create(dbctx.Context{Ctx: ctx}, d); err != nil {
		if domain.IsCode(err, domain.CodeConflict) {
			return nil, domain.NewError(domain.CodeConflict, op, "disability already recorded for this child", err)
		}
		return nil, err
	}
	s.rules.Invalidate(ctx, childID)
	return d, nil
}

func (s *childService) RemoveDisability(ctx context.Context, childID uuid.UUID, t domain.DisabilityType) error {
	const op = "children.remove_disability"
	if _, err := s.guard.load(ctx, op, childID, accessWrite); err != nil {
		return err
	}
	removed, err := s.disabilities.DeleteByType(dbctx.Context{Ctx: ctx}, childID, t)
	if err != nil {
		return err
	}
	if !removed {
		return domain.NotFound(op, "disability")
	}
	s.rules.Invalidate(ctx, childID)
	return nil
}
