package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
)

func TestFromErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		code   domain.ErrorCode
		status int
	}{
		{domain.CodeInvalidArgument, http.StatusBadRequest},
		{domain.CodeNotFound, http.StatusNotFound},
		{domain.CodeConflict, http.StatusConflict},
		{domain.CodeUnauthorized, http.StatusUnauthorized},
		{domain.CodeForbidden, http.StatusForbidden},
		{domain.CodeRateLimited, http.StatusTooManyRequests},
		{domain.CodeUnavailable, http.StatusServiceUnavailable},
		{domain.CodeCache, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", domain.NewError(tc.code, "op", "msg", nil))
		got := FromError(err)
		if got.Status != tc.status || got.Code != string(tc.code) {
			t.Fatalf("code %s: got status=%d code=%s", tc.code, got.Status, got.Code)
		}
	}
}

func TestFromErrorUnknownIsInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	if got.Status != http.StatusInternalServerError || got.Code != "internal" {
		t.Fatalf("unexpected %+v", got)
	}
	if FromError(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}
}
