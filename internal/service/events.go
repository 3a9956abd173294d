package service

import (
	"context"

	"support_chat/internal/realtime"
	"support_chat/pkg/logger"
)

// publish рассылает события после успешной записи. Ошибка шины не отменяет запись.
func publish(ctx context.Context, pub realtime.Publisher, log logger.Logger, events ...realtime.Event) {
	if pub == nil {
		return
	}
	for _, e := range events {
		if err := pub.Publish(ctx, e); err != nil {
			log.Warn("Failed to publish realtime event", "error", err, "table", e.Table, "type", e.Type)
		}
	}
}
