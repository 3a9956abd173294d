package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	// Агент еще не подключился
	StatusWaiting ConversationStatus = "waiting"
	// Агент подключен, идет диалог
	StatusActive ConversationStatus = "active"
	// Обращение закрыто
	StatusResolved ConversationStatus = "resolved"
)

// Conversation - обращение клиента в поддержку
type Conversation struct {
	ID         uuid.UUID          `json:"id"`
	Name       *string            `json:"name,omitempty"`
	CustomerID string             `json:"customer_id"`
	Status     ConversationStatus `json:"status"`
	AgentID    *uuid.UUID         `json:"agent_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	// Заполняется только при выборке списков (eager load)
	Messages []*Message `json:"messages,omitempty"`
}

// allowedTransitions - таблица допустимых переходов статуса.
// Переход в тот же статус всегда разрешен.
var allowedTransitions = map[ConversationStatus][]ConversationStatus{
	StatusWaiting:  {StatusActive, StatusResolved},
	StatusActive:   {StatusResolved},
	StatusResolved: {StatusActive},
}

func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusResolved:
		return true
	}
	return false
}

// ParseStatus разбирает статус из строки запроса
func ParseStatus(raw string) (ConversationStatus, error) {
	s := ConversationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown conversation status %q", raw)
	}
	return s, nil
}

// CanTransition сообщает, разрешен ли переход from -> to
func CanTransition(from, to ConversationStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LastMessage возвращает последнее сообщение (Messages отсортированы по времени)
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}
