// Package realtime доставляет изменения строк (INSERT/UPDATE/DELETE) подписчикам.
package realtime

import (
	"time"

	"support_chat/internal/domain"
)

type Table string

const (
	TableConversations Table = "conversations"
	TableMessages      Table = "messages"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// Event - уведомление об изменении одной строки
type Event struct {
	Table           Table                `json:"table"`
	Type            EventType            `json:"type"`
	Conversation    *domain.Conversation `json:"conversation,omitempty"`
	Message         *domain.Message      `json:"message,omitempty"`
	CommitTimestamp time.Time            `json:"commit_timestamp"`
}

// ConversationEvent строит событие по обращению без вложенных сообщений
func ConversationEvent(t EventType, c *domain.Conversation) Event {
	row := *c
	row.Messages = nil
	return Event{
		Table:           TableConversations,
		Type:            t,
		Conversation:    &row,
		CommitTimestamp: c.UpdatedAt,
	}
}

func MessageEvent(t EventType, m *domain.Message) Event {
	row := *m
	return Event{
		Table:           TableMessages,
		Type:            t,
		Message:         &row,
		CommitTimestamp: time.Now().UTC(),
	}
}

// Column возвращает значение колонки строки в текстовом виде
func (e Event) Column(name string) (string, bool) {
	switch e.Table {
	case TableConversations:
		c := e.Conversation
		if c == nil {
			return "", false
		}
		switch name {
		case "id":
			return c.ID.String(), true
		case "customer_id":
			return c.CustomerID, true
		case "status":
			return string(c.Status), true
		case "agent_id":
			if c.AgentID == nil {
				return "", true
			}
			return c.AgentID.String(), true
		}
	case TableMessages:
		m := e.Message
		if m == nil {
			return "", false
		}
		switch name {
		case "id":
			return m.ID.String(), true
		case "conversation_id":
			return m.ConversationID.String(), true
		case "sender_id":
			return m.SenderID, true
		case "sender_type":
			return string(m.SenderType), true
		}
	}
	return "", false
}

// Filter выбирает строки таблицы по равенству колонки.
// Пустой Column означает все строки таблицы.
type Filter struct {
	Table  Table
	Column string
	Value  string
}

func (f Filter) Matches(e Event) bool {
	if f.Table != e.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := e.Column(f.Column)
	return ok && v == f.Value
}

func AllConversations() Filter {
	return Filter{Table: TableConversations}
}

func AllMessages() Filter {
	return Filter{Table: TableMessages}
}

func ConversationByID(id string) Filter {
	return Filter{Table: TableConversations, Column: "id", Value: id}
}

func ConversationsOfCustomer(customerID string) Filter {
	return Filter{Table: TableConversations, Column: "customer_id", Value: customerID}
}

func MessagesOfConversation(conversationID string) Filter {
	return Filter{Table: TableMessages, Column: "conversation_id", Value: conversationID}
}
