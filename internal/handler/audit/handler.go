package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/audit")
	{
		a.GET("/logs", h.ListLogs)
		a.GET("/logs/stats", h.Stats)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	var query model.AuditLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	entries, err := h.service.ListEntries(c.Request.Context(), &query)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) Stats(c *gin.Context) {
	var query model.AuditLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), &query)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}
