package keypair

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/keypair"
)

type Handler struct {
	service *keypair.Service
}

func NewHandler(service *keypair.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	keys := r.Group("/keys")
	{
		keys.POST("/generate", h.Generate)
		keys.POST("/scan", h.Scan)
		keys.POST("/:id/refresh", h.Rotate)
		keys.POST("/:id/retrieve", h.Retrieve)
		keys.GET("/list", h.List)
		keys.GET("/qr/:id", h.QRImage)
		keys.GET("/connections/:user", h.Connections)
		keys.GET("/:id", h.Get)
		keys.PATCH("/:id/status", h.UpdateStatus)
		keys.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Generate(c *gin.Context) {
	var req model.GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.Generate(c.Request.Context(), &req, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(resp))
}

func (h *Handler) Scan(c *gin.Context) {
	var req model.ScanKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.Scan(c.Request.Context(), &req, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Rotate(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}

	resp, err := h.service.Rotate(c.Request.Context(), keyID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Retrieve(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}

	resp, err := h.service.Retrieve(c.Request.Context(), keyID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Get(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}

	resp, err := h.service.Get(c.Request.Context(), keyID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

// List returns the caller's pairs, or every pair when no actor header is set.
func (h *Handler) List(c *gin.Context) {
	actor := handler.Actor(c)

	var (
		pairs []*model.KeyPair
		err   error
	)
	if actor == "" {
		pairs, err = h.service.ListAll(c.Request.Context())
	} else {
		pairs, err = h.service.ListForUser(c.Request.Context(), actor)
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pairs))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}

	var req model.UpdateKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pair, err := h.service.UpdateStatus(c.Request.Context(), keyID, &req, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pair))
}

func (h *Handler) Delete(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), keyID, handler.Actor(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "key deleted"}))
}

func (h *Handler) Connections(c *gin.Context) {
	conns, err := h.service.Connections(c.Request.Context(), c.Param("user"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(conns))
}

func (h *Handler) QRImage(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid key id"))
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))

	png, err := h.service.QRImage(c.Request.Context(), keyID, handler.Actor(c), size)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
