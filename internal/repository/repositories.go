package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"support_chat/pkg/logger"
)

type Repositories struct {
	Conversation ConversationRepository
	Message      MessageRepository
	Agent        AgentRepository
	Stats        StatsRepository
	Audit        AuditRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		Agent:        NewAgentRepository(db, log),
		Stats:        NewStatsRepository(db, log),
		Audit:        NewAuditRepository(db, log),
	}

	// Без Redis лимиты не применяются
	if redis != nil {
		repos.RateLimit = NewRateLimitRepository(redis, log)
	} else {
		log.Warn("Redis client is nil, rate limiting disabled")
	}

	log.Info("Repositories initialized")
	return repos
}
