package file

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/file"
	"github.com/medvault/medvault-api/internal/service/share"
)

type Handler struct {
	service      *file.Service
	shareService *share.Service
	outdatedDays int
}

func NewHandler(service *file.Service, shareService *share.Service, outdatedDays int) *Handler {
	return &Handler{
		service:      service,
		shareService: shareService,
		outdatedDays: outdatedDays,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("/upload", h.Upload)
		files.POST("/confirm/:id", h.Confirm)
		files.GET("/my-files", h.ListMyFiles)
		files.GET("/download/:id", h.Download)
		files.GET("/metadata/:id", h.Metadata)
		files.GET("/outdated", h.Outdated)
		files.GET("/operations/all", h.AllOperations)
		files.GET("/shares/all", h.AllShares)
		files.DELETE("/delete/:id", h.Delete)
		files.POST("/cleanup-pending", h.CleanupPending)
		files.POST("/outdated/delete", h.BulkDeleteOutdated)
	}
}

func (h *Handler) Upload(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file field is required"))
		return
	}

	var meta json.RawMessage
	if raw := c.PostForm("encryption_meta"); raw != "" {
		if !json.Valid([]byte(raw)) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("encryption_meta must be valid JSON"))
			return
		}
		meta = json.RawMessage(raw)
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read uploaded file"))
		return
	}
	defer src.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	stored, err := h.service.Upload(c.Request.Context(), actor, fileHeader.Filename, mimeType, meta, fileHeader.Size, src)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(stored))
}

func (h *Handler) Confirm(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	resp, err := h.service.Confirm(c.Request.Context(), fileID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListMyFiles(c *gin.Context) {
	actor := handler.Actor(c)
	if actor == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("X-User-Code header is required"))
		return
	}

	var req model.FileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.ListMyFiles(c.Request.Context(), actor, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Download(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	meta, body, err := h.service.Download(c.Request.Context(), fileID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	c.DataFromReader(http.StatusOK, meta.FileSize, meta.MimeType, body, nil)
}

func (h *Handler) Metadata(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	resp, err := h.service.Metadata(c.Request.Context(), fileID, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Delete(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid file id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), fileID, handler.Actor(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "file deleted"}))
}

func (h *Handler) CleanupPending(c *gin.Context) {
	removed, err := h.service.CleanupPending(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"removed": removed}))
}

func (h *Handler) Outdated(c *gin.Context) {
	days := h.outdatedDays
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}

	files, err := h.service.Outdated(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(files))
}

func (h *Handler) BulkDeleteOutdated(c *gin.Context) {
	days := h.outdatedDays
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}

	deleted, err := h.service.BulkDeleteOutdated(c.Request.Context(), time.Duration(days)*24*time.Hour, handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": deleted}))
}

func (h *Handler) AllShares(c *gin.Context) {
	shares, err := h.shareService.ListAll(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(shares))
}

func (h *Handler) AllOperations(c *gin.Context) {
	ops, err := h.service.AllOperations(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ops))
}
