package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/notification"
)

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	n := r.Group("/notifications")
	{
		n.POST("", h.Create)
		n.GET("", h.List)
		n.GET("/unread-count", h.UnreadCount)
		n.PUT("/read-all", h.MarkAllRead)
		n.PUT("/:id/read", h.MarkRead)
		n.DELETE("/all", h.DeleteAll)
		n.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	resp, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) UnreadCount(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unread_count": count}))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification id"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, handler.Actor(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "notification marked read"}))
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"updated": updated}))
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, handler.Actor(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "notification deleted"}))
}

func (h *Handler) DeleteAll(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	deleted, err := h.service.DeleteAll(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": deleted}))
}
