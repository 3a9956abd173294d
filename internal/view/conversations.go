package view

import (
	"context"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/pkg/logger"
)

type ListSnapshot struct {
	Conversations []*domain.Conversation `json:"conversations"`
	Loaded        bool                   `json:"loaded"`
	Error         string                 `json:"error,omitempty"`
}

// ConversationListView перезагружает весь список на любое событие подписки
type ConversationListView struct {
	*lifecycle

	fetch    func(ctx context.Context) ([]*domain.Conversation, error)
	snapshot ListSnapshot
}

// NewCustomerListView следит за обращениями одного клиента
func NewCustomerListView(ctx context.Context, customerID string, src ConversationLister, hub Subscriber, log logger.Logger) *ConversationListView {
	sub := hub.Subscribe(realtime.ConversationsOfCustomer(customerID))
	fetch := func(ctx context.Context) ([]*domain.Conversation, error) {
		return src.ListConversationsForUser(ctx, customerID)
	}
	return startListView(ctx, sub, fetch, log.With("view", "customer_list", "customer_id", customerID))
}

// NewAgentListView следит за всеми обращениями и сообщениями
func NewAgentListView(ctx context.Context, src ConversationLister, hub Subscriber, log logger.Logger) *ConversationListView {
	sub := hub.Subscribe(realtime.AllConversations(), realtime.AllMessages())
	return startListView(ctx, sub, src.ListConversationsForAgents, log.With("view", "agent_list"))
}

func startListView(ctx context.Context, sub *realtime.Subscription, fetch func(context.Context) ([]*domain.Conversation, error), log logger.Logger) *ConversationListView {
	ctx, cancel := context.WithCancel(ctx)
	v := &ConversationListView{
		lifecycle: newLifecycle(sub, cancel, log),
		fetch:     fetch,
		snapshot:  ListSnapshot{Conversations: make([]*domain.Conversation, 0)},
	}
	go v.run(ctx)
	return v
}

func (v *ConversationListView) run(ctx context.Context) {
	defer close(v.done)

	v.reload(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.sub.Dropped():
			if !drain(v.sub.Events()) {
				return
			}
			v.reload(ctx)
		case _, ok := <-v.sub.Events():
			if !ok || !drain(v.sub.Events()) {
				return
			}
			v.reload(ctx)
		}
	}
}

func (v *ConversationListView) reload(ctx context.Context) {
	convs, err := v.fetch(ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if err != nil {
		v.log.Warn("Failed to load conversations", "error", err)
		v.snapshot.Error = err.Error()
	} else {
		if convs == nil {
			convs = make([]*domain.Conversation, 0)
		}
		v.snapshot = ListSnapshot{Conversations: convs, Loaded: true}
	}
	v.mu.Unlock()

	v.notify()
}

func (v *ConversationListView) Snapshot() ListSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := v.snapshot
	s.Conversations = append(make([]*domain.Conversation, 0, len(v.snapshot.Conversations)), v.snapshot.Conversations...)
	return s
}
