package handler

import (
	"support_chat/internal/config"
	"support_chat/internal/service"
	"support_chat/internal/view"
	"support_chat/pkg/logger"
)

type Handlers struct {
	Health            *HealthHandler
	AgentAuth         *AgentAuthHandler
	Conversation      *ConversationHandler
	AgentConversation *AgentConversationHandler
	Stats             *StatsHandler
	WebSocket         *WebSocketHandler
}

func NewHandlers(services *service.Services, hub view.Subscriber, checks map[string]Pinger, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:            NewHealthHandler(checks),
		AgentAuth:         NewAgentAuthHandler(services.AgentAuth, cfg.Agent.RegistrationKey, log),
		Conversation:      NewConversationHandler(services.Conversation, services.Message, log),
		AgentConversation: NewAgentConversationHandler(services.Conversation, services.Message, log),
		Stats:             NewStatsHandler(services.Stats, log),
		WebSocket: NewWebSocketHandler(
			services.Conversation,
			services.Message,
			hub,
			cfg.Server.AllowedOrigins,
			cfg.Realtime.PingInterval,
			log,
		),
	}
}
