package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support_chat/internal/config"
	"support_chat/internal/identity"
)

const contextKeyUserID = "user_id"

// requestStorage - хранилище идентификатора клиента поверх заголовка и cookie
type requestStorage struct {
	c   *gin.Context
	cfg config.IdentityConfig
}

func (s *requestStorage) Get(key string) (string, bool) {
	if key != identity.StorageKey {
		return "", false
	}
	if v := s.c.GetHeader(s.cfg.HeaderName); v != "" {
		return v, true
	}
	if v, err := s.c.Cookie(s.cfg.CookieName); err == nil && v != "" {
		return v, true
	}
	return "", false
}

func (s *requestStorage) Set(key, value string) {
	if key != identity.StorageKey {
		return
	}
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.cfg.CookieName, value, int(s.cfg.CookieMaxAge.Seconds()), "/", "", s.cfg.SecureCookie, true)
}

// Identity определяет псевдо-пользователя. Новый или замененный идентификатор
// отдается клиенту в cookie; текущий всегда дублируется в заголовке ответа.
func Identity(cfg config.IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := identity.NewResolver(&requestStorage{c: c, cfg: cfg}).GetOrCreateUserID()

		c.Set(contextKeyUserID, userID)
		c.Header(cfg.HeaderName, userID)
		c.Next()
	}
}

// UserID возвращает идентификатор клиента, установленный Identity
func UserID(c *gin.Context) string {
	if v, ok := c.Get(contextKeyUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return identity.Anonymous
}
