package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-tutor/internal/http/response"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// POST /api/sessions/start
// body: { "child_id": "..." }
func (h *SessionHandler) Start(c *gin.Context) {
	var req struct {
		ChildID uuid.UUID `json:"child_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.sessions.Start(c.Request.Context(), req.ChildID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// POST /api/sessions/:id/end
func (h *SessionHandler) End(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sess, err := h.sessions.End(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, sess)
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	st, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, st)
}
