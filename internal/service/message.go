package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/internal/repository"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

type MessageService interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
	// SendMessage возвращает (nil, nil) для пустого текста, хранилище не трогается
	SendMessage(ctx context.Context, conversationID uuid.UUID, role domain.SenderRole, senderID, body string) (*domain.Message, error)
	// MarkRead отмечает прочитанными сообщения другой стороны, возвращает число измененных
	MarkRead(ctx context.Context, conversationID uuid.UUID, viewer domain.SenderRole) (int, error)
}

type messageService struct {
	msgRepo repository.MessageRepository
	pub     realtime.Publisher
	log     logger.Logger
}

func NewMessageService(msgRepo repository.MessageRepository, pub realtime.Publisher, log logger.Logger) MessageService {
	return &messageService{
		msgRepo: msgRepo,
		pub:     pub,
		log:     log,
	}
}

func (s *messageService) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	return s.msgRepo.ListByConversation(ctx, conversationID)
}

func (s *messageService) SendMessage(ctx context.Context, conversationID uuid.UUID, role domain.SenderRole, senderID, body string) (*domain.Message, error) {
	content := strings.TrimSpace(body)
	if content == "" {
		return nil, nil
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown sender type %q", apperrors.ErrValidation, role)
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     role,
		Content:        content,
	}
	conv, err := s.msgRepo.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.log.Debug("Message sent", "conversation_id", conversationID, "message_id", msg.ID, "sender_type", role)
	publish(ctx, s.pub, s.log,
		realtime.MessageEvent(realtime.EventInsert, msg),
		realtime.ConversationEvent(realtime.EventUpdate, conv),
	)

	return msg, nil
}

func (s *messageService) MarkRead(ctx context.Context, conversationID uuid.UUID, viewer domain.SenderRole) (int, error) {
	if !viewer.Valid() {
		return 0, fmt.Errorf("%w: unknown viewer role %q", apperrors.ErrValidation, viewer)
	}

	changed, err := s.msgRepo.MarkRead(ctx, conversationID, viewer.Other())
	if err != nil {
		return 0, err
	}

	events := make([]realtime.Event, 0, len(changed))
	for _, m := range changed {
		events = append(events, realtime.MessageEvent(realtime.EventUpdate, m))
	}
	publish(ctx, s.pub, s.log, events...)

	return len(changed), nil
}
