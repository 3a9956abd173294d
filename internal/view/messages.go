package view

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/pkg/logger"
)

// MessageSnapshot - состояние экрана одного обращения
type MessageSnapshot struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []*domain.Message    `json:"messages"`
	Loaded       bool                 `json:"loaded"`
	Error        string               `json:"error,omitempty"`
}

// MessageView: INSERT вставляет новое сообщение по времени (дубликаты по id игнорируются),
// UPDATE заменяет сообщение по id. Любое событие обращения или потеря событий
// в подписке вызывает полную перезагрузку.
type MessageView struct {
	*lifecycle

	id       uuid.UUID
	convs    ConversationGetter
	msgs     MessageLister
	snapshot MessageSnapshot
	index    map[uuid.UUID]int
}

func NewMessageView(ctx context.Context, conversationID uuid.UUID, convs ConversationGetter, msgs MessageLister, hub Subscriber, log logger.Logger) *MessageView {
	ctx, cancel := context.WithCancel(ctx)
	key := conversationID.String()
	sub := hub.Subscribe(realtime.MessagesOfConversation(key), realtime.ConversationByID(key))

	v := &MessageView{
		lifecycle: newLifecycle(sub, cancel, log.With("view", "messages", "conversation_id", key)),
		id:        conversationID,
		convs:     convs,
		msgs:      msgs,
		snapshot:  MessageSnapshot{Messages: make([]*domain.Message, 0)},
		index:     make(map[uuid.UUID]int),
	}
	go v.run(ctx)
	return v
}

func (v *MessageView) run(ctx context.Context) {
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
		case e, ok := <-v.sub.Events():
			if !ok {
				return
			}
			v.handle(ctx, e)
		}
	}
}

func (v *MessageView) handle(ctx context.Context, e realtime.Event) {
	if e.Table == realtime.TableConversations {
		if !drain(v.sub.Events()) {
			return
		}
		v.reload(ctx)
		return
	}

	if e.Message == nil || e.Message.ConversationID != v.id {
		return
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	changed := v.applyMessage(e.Type, e.Message)
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// applyMessage вызывается под v.mu
func (v *MessageView) applyMessage(t realtime.EventType, msg *domain.Message) bool {
	i, seen := v.index[msg.ID]
	switch t {
	case realtime.EventInsert:
		if seen {
			return false
		}
		v.insertOrdered(msg)
		return true
	case realtime.EventUpdate:
		if !seen {
			return false
		}
		v.snapshot.Messages[i] = msg
		return true
	}
	return false
}

// insertOrdered держит порядок ListMessages (created_at, затем id):
// события от разных инстансов через Redis могут прийти не по порядку.
func (v *MessageView) insertOrdered(msg *domain.Message) {
	messages := v.snapshot.Messages
	pos := len(messages)
	for pos > 0 && messageBefore(msg, messages[pos-1]) {
		pos--
	}

	if pos == len(messages) {
		v.index[msg.ID] = pos
		v.snapshot.Messages = append(messages, msg)
		return
	}

	next := make([]*domain.Message, 0, len(messages)+1)
	next = append(next, messages[:pos]...)
	next = append(next, msg)
	next = append(next, messages[pos:]...)
	v.setMessages(next)
}

func messageBefore(a, b *domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (v *MessageView) setMessages(messages []*domain.Message) {
	v.snapshot.Messages = messages
	v.index = make(map[uuid.UUID]int, len(messages))
	for i, m := range messages {
		v.index[m.ID] = i
	}
}

// reload загружает обращение и сообщения параллельно
func (v *MessageView) reload(ctx context.Context) {
	var (
		conv     *domain.Conversation
		messages []*domain.Message
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conv, err = v.convs.GetConversation(gctx, v.id)
		return err
	})
	g.Go(func() error {
		var err error
		messages, err = v.msgs.ListMessages(gctx, v.id)
		return err
	})
	err := g.Wait()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if err != nil {
		v.log.Warn("Failed to load conversation", "error", err)
		v.snapshot.Error = err.Error()
	} else {
		v.snapshot.Conversation = conv
		v.snapshot.Loaded = true
		v.snapshot.Error = ""
		if messages == nil {
			messages = make([]*domain.Message, 0)
		}
		v.setMessages(messages)
	}
	v.mu.Unlock()

	v.notify()
}

// Snapshot возвращает копию текущего состояния
func (v *MessageView) Snapshot() MessageSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := v.snapshot
	s.Messages = append(make([]*domain.Message, 0, len(v.snapshot.Messages)), v.snapshot.Messages...)
	return s
}
