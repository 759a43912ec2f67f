package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List godoc
// @Summary List audit log entries
// @Tags Audit
// @Produce json
// @Param resource query string false "Filter by resource"
// @Param userId query string false "Filter by acting user"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	page, size := pageQuery(c)

	entries, total, err := h.audits.List(c.Request.Context(), c.Query("resource"), c.Query("userId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, paginationMeta(page, size, total))
}
