package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultConversationTitle = "Customer Support"
	DefaultLastMessage       = "A new conversation has started."

	// Сколько ждать агента, прежде чем поднять приоритет
	highPriorityWait = 10 * time.Minute
	// Сколько непрочитанных сообщений делает обращение срочным
	highPriorityUnread = 3
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ConversationSummary - строка списка обращений, готовая для отображения
type ConversationSummary struct {
	ID             uuid.UUID          `json:"id"`
	Title          string             `json:"title"`
	CustomerID     string             `json:"customer_id"`
	Status         ConversationStatus `json:"status"`
	AgentID        *uuid.UUID         `json:"agent_id,omitempty"`
	LastMessage    string             `json:"last_message"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	UnreadCount    int                `json:"unread_count"`
	Priority       Priority           `json:"priority"`
}

// UnreadCount считает непрочитанные сообщения, написанные другой стороной.
// Для панели агента это сообщения клиента, для клиента - сообщения агента.
func UnreadCount(messages []*Message, viewer SenderRole) int {
	author := viewer.Other()
	count := 0
	for _, m := range messages {
		if m.SenderType == author && !m.IsRead {
			count++
		}
	}
	return count
}

// Summarize строит строку списка для указанной стороны
func Summarize(c *Conversation, viewer SenderRole, now time.Time) ConversationSummary {
	title := DefaultConversationTitle
	if c.Name != nil && strings.TrimSpace(*c.Name) != "" {
		title = *c.Name
	}

	lastMessage := DefaultLastMessage
	if last := c.LastMessage(); last != nil {
		lastMessage = last.Content
	}

	unread := UnreadCount(c.Messages, viewer)

	return ConversationSummary{
		ID:             c.ID,
		Title:          title,
		CustomerID:     c.CustomerID,
		Status:         c.Status,
		AgentID:        c.AgentID,
		LastMessage:    lastMessage,
		LastActivityAt: c.UpdatedAt,
		UnreadCount:    unread,
		Priority:       derivePriority(c, unread, now),
	}
}

func derivePriority(c *Conversation, unread int, now time.Time) Priority {
	switch {
	case c.Status == StatusResolved:
		return PriorityLow
	case c.Status == StatusWaiting && now.Sub(c.CreatedAt) >= highPriorityWait:
		return PriorityHigh
	case unread >= highPriorityUnread:
		return PriorityHigh
	case c.Status == StatusWaiting || unread > 0:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// SummarizeAll сохраняет порядок входного списка
func SummarizeAll(conversations []*Conversation, viewer SenderRole, now time.Time) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, Summarize(c, viewer, now))
	}
	return out
}

// FilterSummaries фильтрует по статусу ("" или "all" - без фильтра)
// и по подстроке в заголовке без учета регистра.
func FilterSummaries(summaries []ConversationSummary, status string, search string) []ConversationSummary {
	status = strings.ToLower(strings.TrimSpace(status))
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		if status != "" && status != "all" && string(s.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Title), search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CountByStatus считает счетчики панели по строкам списка
func CountByStatus(summaries []ConversationSummary) DashboardStats {
	var stats DashboardStats
	for _, s := range summaries {
		stats.Add(s.Status, 1)
	}
	return stats
}
