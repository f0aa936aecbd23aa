package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-tutor/internal/http/response"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type AdminHandler struct {
	ingest services.IngestService
}

func NewAdminHandler(ingest services.IngestService) *AdminHandler {
	return &AdminHandler{ingest: ingest}
}

// POST /api/admin/ingest
func (h *AdminHandler) Ingest(c *gin.Context) {
	var req services.IngestInput
	if !bindJSON(c, &req) {
		return
	}
	chunk, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"chunk_id": chunk.ID})
}

// POST /api/admin/reindex
func (h *AdminHandler) Reindex(c *gin.Context) {
	n, err := h.ingest.Reindex(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"indexed": n})
}
