package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "support_chat/pkg/errors"
)

func conversationIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid conversation ID", apperrors.ErrBadRequest)
	}
	return id, nil
}

// abort передает ошибку в middleware.ErrorHandler
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
