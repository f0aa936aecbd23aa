package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/http/response"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type ChildHandler struct {
	children services.ChildService
}

func NewChildHandler(children services.ChildService) *ChildHandler {
	return &ChildHandler{children: children}
}

// POST /api/children
func (h *ChildHandler) Create(c *gin.Context) {
	var req services.CreateChildInput
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.children.Create(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, child)
}

// GET /api/children
func (h *ChildHandler) List(c *gin.Context) {
	list, err := h.children.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"children": list})
}

// GET /api/children/:id
func (h *ChildHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.children.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PUT /api/children/:id/neuro
func (h *ChildHandler) UpsertNeuro(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.NeuroInput
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.children.UpsertNeuro(c.Request.Context(), id, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, profile)
}

// POST /api/children/:id/disabilities
func (h *ChildHandler) AddDisability(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.DisabilityInput
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.children.AddDisability(c.Request.Context(), id, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, d)
}

// DELETE /api/children/:id/disabilities/:type
func (h *ChildHandler) RemoveDisability(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.children.RemoveDisability(c.Request.Context(), id, domain.DisabilityType(c.Param("type"))); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
