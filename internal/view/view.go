// Package view держит локальное состояние экрана чата и синхронизирует его
// с хранилищем: начальная загрузка, затем события realtime.
package view

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"support_chat/internal/domain"
	"support_chat/internal/realtime"
	"support_chat/pkg/logger"
)

type ConversationGetter interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
}

type MessageLister interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
}

type ConversationLister interface {
	ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	ListConversationsForAgents(ctx context.Context) ([]*domain.Conversation, error)
}

// Subscriber - источник событий (realtime.Hub)
type Subscriber interface {
	Subscribe(filters ...realtime.Filter) *realtime.Subscription
}

// lifecycle - подписка и закрытие, общие для всех представлений
type lifecycle struct {
	mu      sync.RWMutex
	closed  bool
	changes chan struct{}
	sub     *realtime.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	log     logger.Logger
}

func newLifecycle(sub *realtime.Subscription, cancel context.CancelFunc, log logger.Logger) *lifecycle {
	return &lifecycle{
		changes: make(chan struct{}, 1),
		sub:     sub,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log,
	}
}

// Changes сигналит об изменении состояния; сигналы схлопываются.
// Канал закрывается после Close.
func (l *lifecycle) Changes() <-chan struct{} {
	return l.changes
}

// Done закрывается, когда представление перестало получать события:
// после Close или после закрытия хаба.
func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *lifecycle) notify() {
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

// Close отписывается и дожидается завершения фоновой горутины.
// Результаты запросов, завершившихся после Close, отбрасываются.
func (l *lifecycle) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		l.cancel()
		l.sub.Unsubscribe()
		<-l.done
		close(l.changes)
	})
}

// drain забирает уже накопившиеся события, чтобы выполнить один refetch на пачку
func drain(ch <-chan realtime.Event) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
