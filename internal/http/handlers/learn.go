package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-tutor/internal/http/response"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

// UsageReader reports today's provider usage.
type UsageReader interface {
	Usage(ctx context.Context) services.Usage
}

type LearnHandler struct {
	learning services.LearningService
	usage    UsageReader
}

func NewLearnHandler(learning services.LearningService, usage UsageReader) *LearnHandler {
	return &LearnHandler{learning: learning, usage: usage}
}

// POST /api/learn/ask
func (h *LearnHandler) Ask(c *gin.Context) {
	var req services.AskInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.learning.Ask(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/learn/signal
func (h *LearnHandler) Signal(c *gin.Context) {
	var req services.SignalInput
	if !bindJSON(c, &req) {
		return
	}
	state, err := h.learning.Signal(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"state": state})
}

// POST /api/learn/feedback
func (h *LearnHandler) Feedback(c *gin.Context) {
	var req services.FeedbackInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.learning.Feedback(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/learn/usage
func (h *LearnHandler) Usage(c *gin.Context) {
	response.RespondOK(c, h.usage.Usage(c.Request.Context()))
}
