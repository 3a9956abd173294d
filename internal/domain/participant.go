package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant связывает обращение с клиентом или агентом
type Participant struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Identity       string    `json:"identity"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

const (
	ParticipantRoleCustomer = "customer"
	ParticipantRoleAgent    = "agent"
)
