package share

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/share"
)

type Handler struct {
	service *share.Service
}

func NewHandler(service *share.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	shares := r.Group("/shares")
	{
		shares.POST("/share", h.Share)
		shares.POST("/:id/revoke", h.Revoke)
		shares.GET("/file/:id", h.ListByFile)
		shares.GET("/my-shares", h.ListSent)
		shares.GET("/shared-with-me", h.ListReceived)
		shares.GET("/shared-with/:id", h.SharedWith)
		shares.GET("/available-users", h.AvailableRecipients)
	}
}

func (h *Handler) Share(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	var req model.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Share(c.Request.Context(), &req, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) Revoke(c *gin.Context) {
	shareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid share id"))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), shareID, handler.Actor(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "share revoked"}))
}

func (h *Handler) ListByFile(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	shares, err := h.service.ListByFile(c.Request.Context(), fileID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(shares))
}

func (h *Handler) SharedWith(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	recipients, err := h.service.SharedWith(c.Request.Context(), fileID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"recipients": recipients}))
}

func (h *Handler) ListSent(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	shares, err := h.service.ListSent(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(shares))
}

func (h *Handler) ListReceived(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	shares, err := h.service.ListReceived(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(shares))
}

func (h *Handler) AvailableRecipients(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	recipients, err := h.service.AvailableRecipients(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(recipients))
}
