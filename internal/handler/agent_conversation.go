package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/middleware"
	"support_chat/internal/service"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

// AgentConversationHandler - панель агента
type AgentConversationHandler struct {
	convs service.ConversationService
	msgs  service.MessageService
	log   logger.Logger
}

func NewAgentConversationHandler(convs service.ConversationService, msgs service.MessageService, log logger.Logger) *AgentConversationHandler {
	return &AgentConversationHandler{
		convs: convs,
		msgs:  msgs,
		log:   log,
	}
}

type AgentConversationList struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
	Stats         domain.DashboardStats        `json:"stats"`
}

type AssignRequest struct {
	AgentID *uuid.UUID `json:"agent_id"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// agentListResponse: счетчики считаются по всему списку, фильтр применяется только к карточкам
func agentListResponse(convs []*domain.Conversation, status, search string, now time.Time) AgentConversationList {
	summaries := domain.SummarizeAll(convs, domain.RoleAgent, now)
	return AgentConversationList{
		Conversations: domain.FilterSummaries(summaries, status, search),
		Stats:         domain.CountByStatus(summaries),
	}
}

func (h *AgentConversationHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", "all")
	if status != "all" && status != "" {
		if _, err := domain.ParseStatus(status); err != nil {
			abort(c, fmt.Errorf("%w: %v", apperrors.ErrInvalidStatus, err))
			return
		}
	}

	convs, err := h.convs.ListConversationsForAgents(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, agentListResponse(convs, status, c.Query("search"), time.Now()))
}

func (h *AgentConversationHandler) Get(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	conv, err := h.convs.GetConversation(ctx, id)
	if err != nil {
		abort(c, err)
		return
	}
	if conv.Messages, err = h.msgs.ListMessages(ctx, id); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Assign назначает агента; без agent_id назначается вызывающий агент
func (h *AgentConversationHandler) Assign(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req AssignRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	agentID, _ := middleware.AgentID(c)
	if req.AgentID != nil {
		agentID = *req.AgentID
	}

	conv, err := h.convs.AssignAgent(c.Request.Context(), id, agentID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *AgentConversationHandler) UpdateStatus(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		abort(c, fmt.Errorf("%w: %v", apperrors.ErrInvalidStatus, err))
		return
	}

	agentID, _ := middleware.AgentID(c)
	conv, err := h.convs.SetStatus(c.Request.Context(), id, status, agentID.String())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *AgentConversationHandler) SendMessage(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	agentID, _ := middleware.AgentID(c)
	msg, err := h.msgs.SendMessage(c.Request.Context(), id, domain.RoleAgent, agentID.String(), req.Content)
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

func (h *AgentConversationHandler) MarkRead(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}

	n, err := h.msgs.MarkRead(c.Request.Context(), id, domain.RoleAgent)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": n})
}
