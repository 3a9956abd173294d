package domain

import (
	"time"

	"github.com/google/uuid"
)

// SenderRole определяет сторону отображения сообщения
type SenderRole string

const (
	RoleUser  SenderRole = "user"
	RoleAgent SenderRole = "agent"
)

func (r SenderRole) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Other возвращает противоположную роль
func (r SenderRole) Other() SenderRole {
	if r == RoleAgent {
		return RoleUser
	}
	return RoleAgent
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderType     SenderRole `json:"sender_type"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	CreatedAt      time.Time  `json:"created_at"`
}
