// Package services holds the application services behind the HTTP handlers
// and the operator CLI. Each service validates input, enforces caregiver
// ownership of children, and drives the repos and the adaptive engine.
package services

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
)

// access decides whether the caregiver on the request may use a child.
type access int

const (
	accessRead access = iota
	accessWrite
)

type childGuard struct {
	children repos.ChildRepo
}

// caregiverFrom returns the authenticated caregiver or an unauthorized error.
func caregiverFrom(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.CaregiverID == uuid.Nil {
		return nil, domain.NewError(domain.CodeUnauthorized, op, "authentication required", nil)
	}
	return rd, nil
}

// load resolves a child the caller may use. A missing child is not_found;
// someone else's child is forbidden, except that admins may read any child.
func (g childGuard) load(ctx context.Context, op string, childID uuid.UUID, mode access) (*domain.ChildProfile, error) {
	rd, err := caregiverFrom(ctx, op)
	if err != nil {
		return nil, err
	}
	if childID == uuid.Nil {
		return nil, domain.InvalidArgument(op, "child_id required")
	}
	child, err := g.children.GetByID(dbctx.Context{Ctx: ctx}, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, domain.NotFound(op, "child")
	}
	if child.CaregiverID == rd.CaregiverID {
		return child, nil
	}
	if mode == accessRead && domain.CaregiverRole(rd.Role) == domain.RoleAdmin {
		return child, nil
	}
	return nil, domain.NewError(domain.CodeForbidden, op, "child belongs to another caregiver", nil)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func trimmed(s string) string { return strings.TrimSpace(s) }
