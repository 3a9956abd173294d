package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"support_chat/internal/service"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

const adminKeyHeader = "X-Admin-Key"

type AgentAuthHandler struct {
	authService     service.AgentAuthService
	registrationKey string
	log             logger.Logger
}

func NewAgentAuthHandler(authService service.AgentAuthService, registrationKey string, log logger.Logger) *AgentAuthHandler {
	return &AgentAuthHandler{
		authService:     authService,
		registrationKey: registrationKey,
		log:             log,
	}
}

type RegisterAgentRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register доступен только с ключом X-Admin-Key; без настроенного ключа регистрация закрыта
func (h *AgentAuthHandler) Register(c *gin.Context) {
	key := c.GetHeader(adminKeyHeader)
	if h.registrationKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.registrationKey)) != 1 {
		h.log.Warn("Agent registration rejected", "client_ip", c.ClientIP())
		abort(c, apperrors.ErrForbidden)
		return
	}

	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	agent, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "email", req.Email)
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, agent)
}

func (h *AgentAuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "email", req.Email)
		abort(c, err)
		return
	}

	h.log.Info("Agent logged in", "agent_id", response.Agent.ID)
	c.JSON(http.StatusOK, response)
}

func (h *AgentAuthHandler) Refresh(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *AgentAuthHandler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// List - агенты, новые сверху
func (h *AgentAuthHandler) List(c *gin.Context) {
	agents, err := h.authService.ListAgents(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, agents)
}
