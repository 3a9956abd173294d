package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"support_chat/internal/domain"
	"support_chat/internal/middleware"
	"support_chat/internal/service"
	"support_chat/pkg/logger"
)

// ConversationHandler - сторона клиента
type ConversationHandler struct {
	convs service.ConversationService
	msgs  service.MessageService
	log   logger.Logger
}

func NewConversationHandler(convs service.ConversationService, msgs service.MessageService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		convs: convs,
		msgs:  msgs,
		log:   log,
	}
}

type CreateConversationRequest struct {
	DisplayName string `json:"display_name"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	conv, err := h.convs.CreateConversation(c.Request.Context(), middleware.UserID(c), req.DisplayName)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// List возвращает карточки обращений клиента, новые сверху
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.convs.ListConversationsForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		abort(c, err)
		return
	}

	summaries := domain.SummarizeAll(convs, domain.RoleUser, time.Now())
	c.JSON(http.StatusOK, domain.FilterSummaries(summaries, "all", c.Query("search")))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	messages, err := h.msgs.ListMessages(c.Request.Context(), conv.ID)
	if err != nil {
		abort(c, err)
		return
	}
	conv.Messages = messages

	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	messages, err := h.msgs.ListMessages(c.Request.Context(), conv.ID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage: пустой текст - no-op, ответ 204
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	msg, err := h.msgs.SendMessage(c.Request.Context(), conv.ID, domain.RoleUser, middleware.UserID(c), req.Content)
	if err != nil {
		abort(c, err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	n, err := h.msgs.MarkRead(c.Request.Context(), conv.ID, domain.RoleUser)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// ownedConversation проверяет, что текущий клиент - участник обращения
func (h *ConversationHandler) ownedConversation(c *gin.Context) (*domain.Conversation, bool) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return nil, false
	}

	ctx := c.Request.Context()
	if err := h.convs.CheckCustomerAccess(ctx, id, middleware.UserID(c)); err != nil {
		abort(c, err)
		return nil, false
	}

	conv, err := h.convs.GetConversation(ctx, id)
	if err != nil {
		abort(c, err)
		return nil, false
	}
	return conv, true
}
