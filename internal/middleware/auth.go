package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support_chat/pkg/jwt"
	"support_chat/pkg/logger"
)

const (
	contextKeyAgentID    = "agent_id"
	contextKeyAgentEmail = "agent_email"
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*jwt.AccessClaims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	log       logger.Logger
}

func NewAuthMiddleware(validator TokenValidator, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		log:       log,
	}
}

// RequireAgent пропускает только агентов с валидным access токеном.
// Для WebSocket токен можно передать в параметре token.
func (m *AuthMiddleware) RequireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := m.validator.ValidateAccessToken(token)
		if err != nil {
			m.log.Debug("Token validation failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(contextKeyAgentID, claims.AgentID)
		c.Set(contextKeyAgentEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func AgentID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextKeyAgentID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
