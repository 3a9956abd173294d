package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "support_chat/pkg/errors"
)

// ErrorHandler отдает последнюю ошибку из c.Errors, если ответ еще не записан
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := apperrors.HTTPStatusFromError(err)

		c.JSON(statusCode, gin.H{
			"error": publicMessage(err, statusCode),
		})
	}
}

// publicMessage скрывает детали ошибок хранилища и внутренних сбоев
func publicMessage(err error, statusCode int) string {
	switch {
	case errors.Is(err, apperrors.ErrStoreWrite):
		return apperrors.ErrStoreWrite.Error()
	case errors.Is(err, apperrors.ErrStoreRead):
		return apperrors.ErrStoreRead.Error()
	case statusCode >= http.StatusInternalServerError:
		return apperrors.ErrInternalServer.Error()
	}
	return err.Error()
}
