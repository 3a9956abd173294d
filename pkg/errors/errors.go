package errors

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrBadRequest              = errors.New("bad request")
	ErrInternalServer          = errors.New("internal server error")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAgentAlreadyExists      = errors.New("agent already exists")
	ErrAgentNotFound           = errors.New("agent not found")
	ErrConversationNotFound    = errors.New("conversation not found")
	ErrInvalidStatus           = errors.New("invalid conversation status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidToken            = errors.New("invalid token")
	ErrTokenExpired            = errors.New("token expired")
	ErrRateLimited             = errors.New("rate limit exceeded")

	// Ошибки хранилища: insert/update отклонен или select не выполнен
	ErrStoreWrite = errors.New("store write failed")
	ErrStoreRead  = errors.New("store read failed")

	// Пустое сообщение обрабатывается как no-op, наружу не выдается
	ErrValidation = errors.New("validation failed")
)

func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAgentAlreadyExists), errors.Is(err, ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreRead), errors.Is(err, ErrStoreWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
