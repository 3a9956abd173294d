package realtime

import (
	"sync"

	"support_chat/pkg/logger"
)

const defaultSubscriptionBuffer = 64

// Hub раздает события подпискам. У каждой подписки свой буферизованный канал.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	log    logger.Logger
}

func NewHub(buffer int, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		log:    log.With("component", "realtime_hub"),
	}
}

// Subscribe регистрирует подписку. Событие доставляется, если совпал хотя бы один фильтр;
// без фильтров доставляются все события.
func (h *Hub) Subscribe(filters ...Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		hub:     h,
		filters: append([]Filter(nil), filters...),
		events:  make(chan Event, h.buffer),
		dropped: make(chan struct{}, 1),
	}

	if h.closed {
		sub.closed = true
		close(sub.events)
		return sub
	}

	h.subs[sub.id] = sub
	return sub
}

// Broadcast не блокируется: при переполненном буфере событие для подписки теряется,
// а подписка получает сигнал в Dropped.
func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.matches(e) {
			continue
		}
		select {
		case sub.events <- e:
		default:
			h.log.Warn("Subscription buffer full, dropping event",
				"subscription", sub.id, "table", e.Table, "type", e.Type)
			select {
			case sub.dropped <- struct{}{}:
			default:
			}
		}
	}
}

// Count возвращает число активных подписок
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close закрывает все подписки, новые создаются уже закрытыми
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.closed = true
		close(sub.events)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	delete(h.subs, sub.id)
	sub.closed = true
	close(sub.events)
}

type Subscription struct {
	id      uint64
	hub     *Hub
	filters []Filter
	events  chan Event
	dropped chan struct{}
	// защищено hub.mu
	closed bool
}

// Events закрывается после Unsubscribe
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped сигналит, что с прошлого сигнала хотя бы одно событие было потеряно.
// Получатель должен перечитать состояние целиком.
func (s *Subscription) Dropped() <-chan struct{} {
	return s.dropped
}

// Unsubscribe идемпотентен
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
}

func (s *Subscription) matches(e Event) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}
