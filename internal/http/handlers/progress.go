package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/http/response"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// GET /api/progress/:child_id
func (h *ProgressHandler) Dashboard(c *gin.Context) {
	id, ok := uuidParam(c, "child_id")
	if !ok {
		return
	}
	out, err := h.progress.Dashboard(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/progress/:child_id/mastery
func (h *ProgressHandler) Mastery(c *gin.Context) {
	id, ok := uuidParam(c, "child_id")
	if !ok {
		return
	}
	records, err := h.progress.Mastery(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"child_id": id, "mastery_records": records})
}

// GET /api/progress/:child_id/timeline?days=30
func (h *ProgressHandler) Timeline(c *gin.Context) {
	id, ok := uuidParam(c, "child_id")
	if !ok {
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, string(domain.CodeInvalidArgument), errors.New("days must be an integer"))
			return
		}
		days = n
	}
	out, err := h.progress.Timeline(c.Request.Context(), id, days)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/progress/:child_id/report
func (h *ProgressHandler) Report(c *gin.Context) {
	id, ok := uuidParam(c, "child_id")
	if !ok {
		return
	}
	out, err := h.progress.Report(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/progress/:child_id/review-queue
func (h *ProgressHandler) ReviewQueue(c *gin.Context) {
	id, ok := uuidParam(c, "child_id")
	if !ok {
		return
	}
	out, err := h.progress.ReviewQueue(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, out)
}
