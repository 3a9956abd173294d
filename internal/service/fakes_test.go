package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	apperrors "support_chat/pkg/errors"
)

// memStore - хранилище в памяти для ConversationRepository и MessageRepository
type memStore struct {
	mu           sync.Mutex
	now          time.Time
	convs        map[uuid.UUID]*domain.Conversation
	messages     map[uuid.UUID][]*domain.Message
	participants map[uuid.UUID][]domain.Participant
	failWrites   error
	failReads    error
	calls        int
}

func newMemStore() *memStore {
	return &memStore{
		now:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		convs:        make(map[uuid.UUID]*domain.Conversation),
		messages:     make(map[uuid.UUID][]*domain.Message),
		participants: make(map[uuid.UUID][]domain.Participant),
	}
}

// tick сдвигает часы, чтобы у записей не было одинаковых меток времени
func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

func (s *memStore) write() error {
	s.calls++
	if s.failWrites != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreWrite, s.failWrites)
	}
	return nil
}

func (s *memStore) read() error {
	s.calls++
	if s.failReads != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreRead, s.failReads)
	}
	return nil
}

func (s *memStore) snapshot(c *domain.Conversation, withMessages bool) *domain.Conversation {
	cp := *c
	cp.Messages = nil
	if withMessages {
		cp.Messages = make([]*domain.Message, 0, len(s.messages[c.ID]))
		for _, m := range s.messages[c.ID] {
			mc := *m
			cp.Messages = append(cp.Messages, &mc)
		}
	}
	return &cp
}

func (s *memStore) Create(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}

	now := s.tick()
	conv.ID = uuid.New()
	conv.CreatedAt, conv.UpdatedAt = now, now
	stored := *conv
	s.convs[conv.ID] = &stored
	s.participants[conv.ID] = append(s.participants[conv.ID], domain.Participant{
		ID: uuid.New(), ConversationID: conv.ID, Identity: conv.CustomerID,
		Role: domain.ParticipantRoleCustomer, JoinedAt: now,
	})
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.read(); err != nil {
		return nil, err
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	return s.snapshot(c, false), nil
}

func (s *memStore) sorted(keep func(*domain.Conversation) bool) []*domain.Conversation {
	out := make([]*domain.Conversation, 0)
	for _, c := range s.convs {
		if keep(c) {
			out = append(out, s.snapshot(c, true))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *memStore) ListForCustomer(_ context.Context, customerID string) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.read(); err != nil {
		return nil, err
	}
	return s.sorted(func(c *domain.Conversation) bool {
		for _, p := range s.participants[c.ID] {
			if p.Identity == customerID && p.Role == domain.ParticipantRoleCustomer {
				return true
			}
		}
		return false
	}), nil
}

func (s *memStore) ListAll(_ context.Context) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.read(); err != nil {
		return nil, err
	}
	return s.sorted(func(*domain.Conversation) bool { return true }), nil
}

func (s *memStore) AssignAgent(_ context.Context, id, agentID uuid.UUID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return nil, err
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	agent := agentID
	c.AgentID = &agent
	c.Status = domain.StatusActive
	c.UpdatedAt = s.tick()
	return s.snapshot(c, false), nil
}

func (s *memStore) SetStatus(_ context.Context, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return nil, err
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	if !domain.CanTransition(c.Status, status) {
		return nil, apperrors.ErrInvalidStatusTransition
	}
	c.Status = status
	c.UpdatedAt = s.tick()
	return s.snapshot(c, false), nil
}

func (s *memStore) IsParticipant(_ context.Context, id uuid.UUID, identity, role string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.read(); err != nil {
		return false, err
	}
	for _, p := range s.participants[id] {
		if p.Identity == identity && p.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// memMessages разделяет состояние с memStore, но реализует MessageRepository
type memMessages struct{ *memStore }

func (m memMessages) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read(); err != nil {
		return nil, err
	}
	out := make([]*domain.Message, 0)
	for _, msg := range m.messages[conversationID] {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m memMessages) Create(_ context.Context, msg *domain.Message) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return nil, err
	}
	c, ok := m.convs[msg.ConversationID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}

	msg.ID = uuid.New()
	msg.IsRead = false
	msg.CreatedAt = m.tick()
	stored := *msg
	m.messages[c.ID] = append(m.messages[c.ID], &stored)

	c.UpdatedAt = msg.CreatedAt
	if c.Status == domain.StatusWaiting {
		c.Status = domain.StatusActive
	}
	return m.snapshot(c, false), nil
}

func (m memMessages) MarkRead(_ context.Context, conversationID uuid.UUID, senderType domain.SenderRole) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return nil, err
	}
	changed := make([]*domain.Message, 0)
	for _, msg := range m.messages[conversationID] {
		if msg.SenderType == senderType && !msg.IsRead {
			msg.IsRead = true
			cp := *msg
			changed = append(changed, &cp)
		}
	}
	return changed, nil
}

type memAgents struct {
	mu        sync.Mutex
	agents    map[uuid.UUID]*domain.Agent
	sessions  map[uuid.UUID]*domain.AgentSession
	revokeErr error
}

func newMemAgents() *memAgents {
	return &memAgents{
		agents:   make(map[uuid.UUID]*domain.Agent),
		sessions: make(map[uuid.UUID]*domain.AgentSession),
	}
}

func (r *memAgents) Create(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.Email == agent.Email {
			return apperrors.ErrAgentAlreadyExists
		}
	}
	agent.ID = uuid.New()
	agent.CreatedAt = time.Now()
	stored := *agent
	r.agents[agent.ID] = &stored
	return nil
}

func (r *memAgents) GetByID(_ context.Context, id uuid.UUID) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, apperrors.ErrAgentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAgents) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrAgentNotFound
}

func (r *memAgents) List(_ context.Context) ([]*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAgents) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return apperrors.ErrAgentNotFound
	}
	a.IsOnline = online
	return nil
}

func (r *memAgents) CreateSession(_ context.Context, session *domain.AgentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *memAgents) GetSessionByTokenHash(_ context.Context, tokenHash string) (*domain.AgentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshTokenHash == tokenHash && s.RevokedAt == nil && s.ExpiresAt.After(time.Now()) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.ErrInvalidToken
}

func (r *memAgents) RevokeSession(_ context.Context, sessionID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revokeErr != nil {
		return r.revokeErr
	}
	s, ok := r.sessions[sessionID]
	if !ok || s.RevokedAt != nil {
		return apperrors.ErrInvalidToken
	}
	now := time.Now()
	s.RevokedAt = &now
	s.RevokedReason = &reason
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	logs []*domain.AuditLog
}

func (r *memAudit) CreateLog(_ context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = int64(len(r.logs) + 1)
	r.logs = append(r.logs, log)
	return nil
}

func (r *memAudit) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.EventType)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

type counterRateLimit struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (r *counterRateLimit) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int64)
	}
	r.counts[key]++
	return r.counts[key], nil
}
