package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

// tokenAuth accepts "<role>-token" for any known role.
type tokenAuth struct {
	services.AuthService
	id uuid.UUID
}

func (a tokenAuth) SetContextFromToken(ctx context.Context, token string) (context.Context, error) {
	for _, r := range []domain.CaregiverRole{domain.RoleParent, domain.RoleAdmin} {
		if token == string(r)+"-token" {
			return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: token, CaregiverID: a.id, Role: string(r)}), nil
		}
	}
	return nil, domain.NewError(domain.CodeUnauthorized, "auth.token", "invalid token", nil)
}

func newAuthRouter(t *testing.T, id uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), tokenAuth{id: id})
	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.String(http.StatusOK, rd.CaregiverID.String())
	})
	r.GET("/admin", am.RequireRole(domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequireAuth(t *testing.T) {
	id := uuid.New()
	r := newAuthRouter(t, id)

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer PARENT-token", http.StatusOK},
		{"bearer PARENT-token", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%q: status=%d want %d", tc.header, rec.Code, tc.status)
		}
		if tc.status == http.StatusOK && rec.Body.String() != id.String() {
			t.Fatalf("caregiver id not propagated: %q", rec.Body.String())
		}
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(t, uuid.New())
	for token, want := range map[string]int{
		"PARENT-token": http.StatusForbidden,
		"ADMIN-token":  http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: status=%d want %d", token, rec.Code, want)
		}
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatalf("request id header: %q", rec.Header().Get(HeaderRequestID))
	}
	if seen == nil || seen.RequestID != "req-42" || seen.TraceID == "" {
		t.Fatalf("trace data: %+v", seen)
	}
	if rec.Header().Get(HeaderTraceID) != seen.TraceID {
		t.Fatalf("trace id header mismatch")
	}
}
