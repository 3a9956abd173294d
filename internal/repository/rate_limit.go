package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"support_chat/pkg/logger"
)

const rateLimitKeyPrefix = "support_chat:ratelimit:"

type RateLimitRepository interface {
	// Hit увеличивает счетчик окна и возвращает его значение
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = rateLimitKeyPrefix + key

	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX: TTL выставляется только на первом запросе окна
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return 0, err
	}

	return incr.Val(), nil
}
