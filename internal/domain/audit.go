package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             int64                  `json:"id"`
	EventTime      time.Time              `json:"event_time"`
	ActorID        string                 `json:"actor_id"`
	ActorRole      string                 `json:"actor_role"`
	ConversationID *uuid.UUID             `json:"conversation_id,omitempty"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload"`
}

const (
	ActorRoleCustomer = "customer"
	ActorRoleAgent    = "agent"
	ActorRoleSystem   = "system"
)

const (
	EventTypeConversationCreated       = "CONVERSATION_CREATED"
	EventTypeConversationAssigned      = "CONVERSATION_ASSIGNED"
	EventTypeConversationStatusChanged = "CONVERSATION_STATUS_CHANGED"
	EventTypeAgentRegistered           = "AGENT_REGISTERED"
	EventTypeAgentLoggedIn             = "AGENT_LOGGED_IN"
	EventTypeAgentLoggedOut            = "AGENT_LOGGED_OUT"
)
