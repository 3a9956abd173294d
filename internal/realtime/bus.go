package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"support_chat/pkg/logger"
)

// Publisher - сторона записи: сервисы публикуют события после успешных изменений
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus переносит события между экземплярами сервера
type Bus interface {
	Publisher
	StartForwarder(ctx context.Context, onEvent func(Event)) error
	Close() error
}

type redisBus struct {
	rdb     *redis.Client
	channel string
	log     logger.Logger
}

// NewRedisBus использует общий клиент Redis, Close его не закрывает
func NewRedisBus(rdb *redis.Client, channel string, log logger.Logger) (Bus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		channel = "support_chat:realtime"
	}
	return &redisBus{
		rdb:     rdb,
		channel: channel,
		log:     log.With("component", "redis_bus"),
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Error("Failed to publish event", "error", err, "table", e.Table, "type", e.Type)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// Дожидаемся подтверждения подписки
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.log.Warn("Bad realtime payload", "error", err)
					continue
				}
				onEvent(e)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return nil
}

// localBus - шина в пределах одного процесса
type localBus struct {
	mu       sync.RWMutex
	handlers []func(Event)
	closed   bool
}

func NewLocalBus() Bus {
	return &localBus{}
}

func (b *localBus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("realtime bus closed")
	}
	for _, h := range b.handlers {
		if h != nil {
			h(e)
		}
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("realtime bus closed")
	}

	idx := len(b.handlers)
	b.handlers = append(b.handlers, onEvent)

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
		b.mu.Unlock()
	}()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}
