package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medvault/medvault-api/internal/handler"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/service/auth"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/login", h.Login)
		a.POST("/verify", h.VerifyCode)
		a.POST("/resend-code", h.ResendCode)
		a.POST("/reset-password", h.ResetPassword)
		a.POST("/logout", h.Logout)
		a.POST("/create-user", h.CreateUser)
		a.GET("/users", h.ListUsers)

		b := a.Group("/biometric")
		{
			b.POST("/register", h.RegisterBiometric)
			b.POST("/challenge", h.BiometricChallenge)
			b.POST("/verify", h.VerifyBiometric)
			b.GET("/check", h.CheckBiometric)
		}
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) VerifyCode(c *gin.Context) {
	var req model.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.VerifyCode(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ResendCode(c *gin.Context) {
	var req model.ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), &req); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "password updated"}))
}

func (h *Handler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	h.service.Logout(c.Request.Context(), req.UserCode, c.ClientIP())
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "logged out"}))
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(users))
}

func (h *Handler) RegisterBiometric(c *gin.Context) {
	var req model.BiometricRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	cred, err := h.service.RegisterBiometric(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(cred))
}

func (h *Handler) BiometricChallenge(c *gin.Context) {
	var req model.BiometricChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ch, err := h.service.CreateBiometricChallenge(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ch))
}

func (h *Handler) VerifyBiometric(c *gin.Context) {
	var req model.BiometricVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.VerifyBiometric(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) CheckBiometric(c *gin.Context) {
	userCode := c.Query("user_code")
	if userCode == "" {
		userCode = handler.Actor(c)
	}
	if userCode == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("user_code is required"))
		return
	}

	registered, err := h.service.HasBiometric(c.Request.Context(), userCode)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"registered": registered}))
}
