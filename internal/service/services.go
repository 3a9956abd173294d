package service

import (
	"support_chat/internal/config"
	"support_chat/internal/realtime"
	"support_chat/internal/repository"
	"support_chat/pkg/logger"
)

type Services struct {
	Conversation ConversationService
	Message      MessageService
	AgentAuth    AgentAuthService
	Stats        StatsService
	RateLimit    RateLimitService
	Audit        AuditService
}

func NewServices(repos *repository.Repositories, pub realtime.Publisher, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	return &Services{
		Conversation: NewConversationService(repos.Conversation, audit, pub, log),
		Message:      NewMessageService(repos.Message, pub, log),
		AgentAuth:    NewAgentAuthService(repos.Agent, audit, cfg.JWT, log),
		Stats:        NewStatsService(repos.Stats, log),
		RateLimit:    NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Audit:        audit,
	}
}
