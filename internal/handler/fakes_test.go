package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/internal/service"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/jwt"
)

// fakeChat реализует ConversationService и MessageService в памяти
// и публикует события в хаб, как это делают настоящие сервисы.
type fakeChat struct {
	mu        sync.Mutex
	convs     map[uuid.UUID]*domain.Conversation
	messages  map[uuid.UUID][]*domain.Message
	hub       *realtime.Hub
	failReads bool
	now       time.Time
}

func newFakeChat(hub *realtime.Hub) *fakeChat {
	return &fakeChat{
		convs:    make(map[uuid.UUID]*domain.Conversation),
		messages: make(map[uuid.UUID][]*domain.Message),
		hub:      hub,
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeChat) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeChat) broadcast(e realtime.Event) {
	if f.hub != nil {
		f.hub.Broadcast(e)
	}
}

func (f *fakeChat) withMessages(c *domain.Conversation) *domain.Conversation {
	cp := *c
	cp.Messages = append([]*domain.Message(nil), f.messages[c.ID]...)
	return &cp
}

func (f *fakeChat) CreateConversation(_ context.Context, customerID, displayName string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.tick()
	conv := &domain.Conversation{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     domain.StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if name := strings.TrimSpace(displayName); name != "" {
		conv.Name = &name
	}
	f.convs[conv.ID] = conv
	f.broadcast(realtime.ConversationEvent(realtime.EventInsert, conv))
	return f.withMessages(conv), nil
}

func (f *fakeChat) ListConversationsForUser(_ context.Context, userID string) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failReads {
		return nil, apperrors.ErrStoreRead
	}
	out := make([]*domain.Conversation, 0)
	for _, c := range f.convs {
		if c.CustomerID == userID {
			out = append(out, f.withMessages(c))
		}
	}
	return out, nil
}

func (f *fakeChat) ListConversationsForAgents(_ context.Context) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failReads {
		return nil, apperrors.ErrStoreRead
	}
	out := make([]*domain.Conversation, 0, len(f.convs))
	for _, c := range f.convs {
		out = append(out, f.withMessages(c))
	}
	return out, nil
}

func (f *fakeChat) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failReads {
		return nil, apperrors.ErrStoreRead
	}
	c, ok := f.convs[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChat) CheckCustomerAccess(_ context.Context, id uuid.UUID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.convs[id]
	if !ok || c.CustomerID != customerID {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

func (f *fakeChat) AssignAgent(_ context.Context, conversationID, agentID uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.convs[conversationID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	id := agentID
	c.AgentID = &id
	c.Status = domain.StatusActive
	c.UpdatedAt = f.tick()
	f.broadcast(realtime.ConversationEvent(realtime.EventUpdate, c))
	cp := *c
	return &cp, nil
}

func (f *fakeChat) SetStatus(_ context.Context, conversationID uuid.UUID, status domain.ConversationStatus, _ string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.convs[conversationID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	if !domain.CanTransition(c.Status, status) {
		return nil, apperrors.ErrInvalidStatusTransition
	}
	c.Status = status
	c.UpdatedAt = f.tick()
	f.broadcast(realtime.ConversationEvent(realtime.EventUpdate, c))
	cp := *c
	return &cp, nil
}

func (f *fakeChat) ListMessages(_ context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failReads {
		return nil, apperrors.ErrStoreRead
	}
	return append([]*domain.Message{}, f.messages[conversationID]...), nil
}

func (f *fakeChat) SendMessage(_ context.Context, conversationID uuid.UUID, role domain.SenderRole, senderID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.convs[conversationID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     role,
		Content:        body,
		CreatedAt:      f.tick(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	c.UpdatedAt = msg.CreatedAt
	f.broadcast(realtime.MessageEvent(realtime.EventInsert, msg))
	f.broadcast(realtime.ConversationEvent(realtime.EventUpdate, c))
	return msg, nil
}

func (f *fakeChat) MarkRead(_ context.Context, conversationID uuid.UUID, viewer domain.SenderRole) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	msgs := f.messages[conversationID]
	for i, m := range msgs {
		if m.SenderType == viewer.Other() && !m.IsRead {
			read := *m
			read.IsRead = true
			msgs[i] = &read
			n++
			f.broadcast(realtime.MessageEvent(realtime.EventUpdate, &read))
		}
	}
	return n, nil
}

type fakeAuth struct {
	registered []string
}

func (a *fakeAuth) Register(_ context.Context, name, email, _ string) (*domain.Agent, error) {
	a.registered = append(a.registered, email)
	return &domain.Agent{ID: uuid.New(), Name: name, Email: email}, nil
}

func (a *fakeAuth) Login(_ context.Context, _, _ string) (*service.LoginResponse, error) {
	return nil, apperrors.ErrInvalidCredentials
}

func (a *fakeAuth) Refresh(_ context.Context, _ string) (*service.TokenResponse, error) {
	return nil, apperrors.ErrInvalidToken
}

func (a *fakeAuth) Logout(_ context.Context, _ string) error {
	return nil
}

func (a *fakeAuth) ValidateAccessToken(_ string) (*jwt.AccessClaims, error) {
	return nil, apperrors.ErrInvalidToken
}

func (a *fakeAuth) ListAgents(_ context.Context) ([]*domain.Agent, error) {
	return []*domain.Agent{}, nil
}
