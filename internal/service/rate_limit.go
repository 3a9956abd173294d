package service

import (
	"context"
	"time"

	"support_chat/internal/config"
	"support_chat/internal/repository"
	"support_chat/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает запрос и сообщает, укладывается ли ключ в лимит окна
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	limit         int
	window        time.Duration
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		limit:         cfg.Limit,
		window:        cfg.Window,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	if s.rateLimitRepo == nil {
		return true, nil
	}

	count, err := s.rateLimitRepo.Hit(ctx, key, s.window)
	if err != nil {
		return false, err
	}
	if count > int64(s.limit) {
		s.log.Debug("Rate limit exceeded", "key", key, "count", count)
		return false, nil
	}
	return true, nil
}
