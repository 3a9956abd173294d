package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/internal/repository"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

const maxDisplayNameRunes = 50

type ConversationService interface {
	CreateConversation(ctx context.Context, customerID, displayName string) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	ListConversationsForAgents(ctx context.Context) ([]*domain.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// CheckCustomerAccess возвращает ErrConversationNotFound, если клиент не участник обращения
	CheckCustomerAccess(ctx context.Context, id uuid.UUID, customerID string) error
	AssignAgent(ctx context.Context, conversationID, agentID uuid.UUID) (*domain.Conversation, error)
	SetStatus(ctx context.Context, conversationID uuid.UUID, status domain.ConversationStatus, actorID string) (*domain.Conversation, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	audit    AuditService
	pub      realtime.Publisher
	log      logger.Logger
}

func NewConversationService(convRepo repository.ConversationRepository, audit AuditService, pub realtime.Publisher, log logger.Logger) ConversationService {
	return &conversationService{
		convRepo: convRepo,
		audit:    audit,
		pub:      pub,
		log:      log,
	}
}

// normalizeDisplayName обрезает пробелы и длину; пустое имя не сохраняется
func normalizeDisplayName(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(name) > maxDisplayNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxDisplayNameRunes]))
	}
	return &name
}

func (s *conversationService) CreateConversation(ctx context.Context, customerID, displayName string) (*domain.Conversation, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", apperrors.ErrValidation)
	}

	conv := &domain.Conversation{
		Name:       normalizeDisplayName(displayName),
		CustomerID: customerID,
		Status:     domain.StatusWaiting,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	conv.Messages = make([]*domain.Message, 0)

	s.log.Info("Conversation created", "conversation_id", conv.ID, "customer_id", customerID)
	s.audit.LogEvent(ctx, customerID, domain.ActorRoleCustomer, &conv.ID, domain.EventTypeConversationCreated, nil)
	publish(ctx, s.pub, s.log, realtime.ConversationEvent(realtime.EventInsert, conv))

	return conv, nil
}

func (s *conversationService) ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return s.convRepo.ListForCustomer(ctx, userID)
}

func (s *conversationService) ListConversationsForAgents(ctx context.Context) ([]*domain.Conversation, error) {
	return s.convRepo.ListAll(ctx)
}

func (s *conversationService) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return s.convRepo.GetByID(ctx, id)
}

func (s *conversationService) CheckCustomerAccess(ctx context.Context, id uuid.UUID, customerID string) error {
	ok, err := s.convRepo.IsParticipant(ctx, id, customerID, domain.ParticipantRoleCustomer)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

func (s *conversationService) AssignAgent(ctx context.Context, conversationID, agentID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.AssignAgent(ctx, conversationID, agentID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Agent assigned", "conversation_id", conversationID, "agent_id", agentID)
	s.audit.LogEvent(ctx, agentID.String(), domain.ActorRoleAgent, &conversationID, domain.EventTypeConversationAssigned,
		map[string]interface{}{"agent_id": agentID.String()})
	publish(ctx, s.pub, s.log, realtime.ConversationEvent(realtime.EventUpdate, conv))

	return conv, nil
}

func (s *conversationService) SetStatus(ctx context.Context, conversationID uuid.UUID, status domain.ConversationStatus, actorID string) (*domain.Conversation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, status)
	}

	conv, err := s.convRepo.SetStatus(ctx, conversationID, status)
	if err != nil {
		return nil, err
	}

	s.log.Info("Conversation status changed", "conversation_id", conversationID, "status", status)
	s.audit.LogEvent(ctx, actorID, domain.ActorRoleAgent, &conversationID, domain.EventTypeConversationStatusChanged,
		map[string]interface{}{"status": string(status)})
	publish(ctx, s.pub, s.log, realtime.ConversationEvent(realtime.EventUpdate, conv))

	return conv, nil
}
