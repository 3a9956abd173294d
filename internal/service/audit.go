package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/repository"
	"support_chat/pkg/logger"
)

type AuditService interface {
	// LogEvent не возвращает ошибку: сбой аудита только логируется
	LogEvent(ctx context.Context, actorID, actorRole string, conversationID *uuid.UUID, eventType string, payload map[string]interface{})
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorID, actorRole string, conversationID *uuid.UUID, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:      time.Now(),
		ActorID:        actorID,
		ActorRole:      actorRole,
		ConversationID: conversationID,
		EventType:      eventType,
		Payload:        payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType)
	}
}
