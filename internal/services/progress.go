package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const (
	DefaultTimelineDays = 30
	MaxTimelineDays     = 365
	ReportPeriodDays    = 30
)

type Dashboard struct {
	ChildID           uuid.UUID               `json:"child_id"`
	MasteryRecords    []*domain.MasteryRecord `json:"mastery_records"`
	TotalSessions     int64                   `json:"total_sessions"`
	TotalInteractions int64                   `json:"total_interactions"`
}

type TimelinePoint struct {
	Date           string   `json:"date"`
	Interactions   int      `json:"interactions"`
	AvgEngagement  *float64 `json:"avg_engagement"`
	engagementSum  float64
	engagementSeen int
}

type Timeline struct {
	ChildID  uuid.UUID       `json:"child_id"`
	Days     int             `json:"days"`
	Timeline []TimelinePoint `json:"timeline"`
}

type MasterySummary struct {
	Topic        string  `json:"topic"`
	MasteryLevel float64 `json:"mastery_level"`
	ReviewCount  int     `json:"review_count"`
}

type Report struct {
	ChildID           uuid.UUID        `json:"child_id"`
	PeriodDays        int              `json:"period_days"`
	TotalSessions     int64            `json:"total_sessions"`
	TotalInteractions int64            `json:"total_interactions"`
	MasterySummary    []MasterySummary `json:"mastery_summary"`
	TrendData         map[string]any   `json:"trend_data"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

type ReviewItem struct {
	Topic         string    `json:"topic"`
	NextReviewDue time.Time `json:"next_review_due"`
	MasteryLevel  float64   `json:"mastery_level"`
	Stability     float64   `json:"stability"`
}

type ReviewQueue struct {
	ChildID   uuid.UUID    `json:"child_id"`
	DueTopics []ReviewItem `json:"due_topics"`
}

type ProgressService interface {
	Dashboard(ctx context.Context, childID uuid.UUID) (*Dashboard, error)
	Mastery(ctx context.Context, childID uuid.UUID) ([]*domain.MasteryRecord, error)
	Timeline(ctx context.Context, childID uuid.UUID, days int) (*Timeline, error)
	Report(ctx context.Context, childID uuid.UUID) (*Report, error)
	ReviewQueue(ctx context.Context, childID uuid.UUID) (*ReviewQueue, error)
}

type progressService struct {
	log          *logger.Logger
	guard        childGuard
	sessions     repos.SessionRepo
	interactions repos.InteractionRepo
	mastery      repos.MasteryRepo
	now          func() time.Time
}

func NewProgressService(
	baseLog *logger.Logger,
	children repos.ChildRepo,
	sessions repos.SessionRepo,
	interactions repos.InteractionRepo,
	mastery repos.MasteryRepo,
) ProgressService {
	return &progressService{
		log:          baseLog.With("service", "ProgressService"),
		guard:        childGuard{children: children},
		sessions:     sessions,
		interactions: interactions,
		mastery:      mastery,
		now:          time.Now,
	}
}

func (s *progressService) Dashboard(ctx context.Context, childID uuid.UUID) (*Dashboard, error) {
	records, err := s.Mastery(ctx, childID)
	if err != nil {
		return nil, err
	}
	sessions, interactions, err := s.counts(ctx, childID, time.Time{})
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		ChildID:           childID,
		MasteryRecords:    records,
		TotalSessions:     sessions,
		TotalInteractions: interactions,
	}, nil
}

func (s *progressService) Mastery(ctx context.Context, childID uuid.UUID) ([]*domain.MasteryRecord, error) {
	if _, err := s.guard.load(ctx, "progress.mastery", childID, accessRead); err != nil {
		return nil, err
	}
	records, err := s.mastery.ListByChild(dbctx.Context{Ctx: ctx}, childID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.MasteryRecord{}
	}
	return records, nil
}

// Timeline buckets the child's interactions of the last days by UTC day.
// Days without interactions are omitted.
func (s *progressService) Timeline(ctx context.Context, childID uuid.UUID, days int) (*Timeline, error) {
	const op = "progress.timeline"
	if days == 0 {
		days = DefaultTimelineDays
	}
	if days < 1 || days > MaxTimelineDays {
		return nil, domain.InvalidArgument(op, "days must be 1-365")
	}
	if _, err := s.guard.load(ctx, op, childID, accessRead); err != nil {
		return nil, err
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	rows, err := s.interactions.ListSince(dbctx.Context{Ctx: ctx}, childID, since)
	if err != nil {
		return nil, err
	}
	return &Timeline{ChildID: childID, Days: days, Timeline: bucketByDay(rows)}, nil
}

func bucketByDay(rows []*domain.Interaction) []TimelinePoint {
	byDay := map[string]*TimelinePoint{}
	for _, it := range rows {
		day := it.CreatedAt.UTC().Format(dateLayout)
		p, ok := byDay[day]
		if !ok {
			p = &TimelinePoint{Date: day}
			byDay[day] = p
		}
		p.Interactions++
		if it.EngagementScore != nil {
			p.engagementSum += *it.EngagementScore
			p.engagementSeen++
		}
	}
	out := make([]TimelinePoint, 0, len(byDay))
	for _, p := range byDay {
		if p.engagementSeen > 0 {
			avg := round4(p.engagementSum / float64(p.engagementSeen))
			p.AvgEngagement = &avg
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (s *progressService) Report(ctx context.Context, childID uuid.UUID) (*Report, error) {
	records, err := s.Mastery(ctx, childID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sessions, interactions, err := s.counts(ctx, childID, now.AddDate(0, 0, -ReportPeriodDays))
	if err != nil {
		return nil, err
	}
	summary := make([]MasterySummary, 0, len(records))
	mastered := 0
	for _, r := range records {
		summary = append(summary, MasterySummary{Topic: r.Topic, MasteryLevel: r.MasteryLevel, ReviewCount: r.ReviewCount})
		if r.MasteryLevel >= domain.WeakMasteryThreshold {
			mastered++
		}
	}
	return &Report{
		ChildID:           childID,
		PeriodDays:        ReportPeriodDays,
		TotalSessions:     sessions,
		TotalInteractions: interactions,
		MasterySummary:    summary,
		TrendData: map[string]any{
			"period_days":     ReportPeriodDays,
			"topics_tracked":  len(records),
			"topics_mastered": mastered,
		},
		GeneratedAt: now,
	}, nil
}

func (s *progressService) ReviewQueue(ctx context.Context, childID uuid.UUID) (*ReviewQueue, error) {
	if _, err := s.guard.load(ctx, "progress.review_queue", childID, accessRead); err != nil {
		return nil, err
	}
	due, err := s.mastery.Due(dbctx.Context{Ctx: ctx}, childID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	items := make([]ReviewItem, 0, len(due))
	for _, r := range due {
		if r.NextReviewDue == nil {
			continue
		}
		items = append(items, ReviewItem{
			Topic:         r.Topic,
			NextReviewDue: *r.NextReviewDue,
			MasteryLevel:  r.MasteryLevel,
			Stability:     r.Stability,
		})
	}
	return &ReviewQueue{ChildID: childID, DueTopics: items}, nil
}

func (s *progressService) counts(ctx context.Context, childID uuid.UUID, since time.Time) (int64, int64, error) {
	dbc := dbctx.Context{Ctx: ctx}
	sessions, err := s.sessions.CountByChild(dbc, childID, since)
	if err != nil {
		return 0, 0, err
	}
	interactions, err := s.interactions.CountByChild(dbc, childID, since)
	if err != nil {
		return 0, 0, err
	}
	return sessions, interactions, nil
}
