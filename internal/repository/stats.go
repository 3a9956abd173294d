package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"support_chat/internal/domain"
	"support_chat/pkg/logger"
)

type StatsRepository interface {
	CountByStatus(ctx context.Context) (*domain.DashboardStats, error)
}

type statsRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewStatsRepository(db *pgxpool.Pool, log logger.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

func (r *statsRepository) CountByStatus(ctx context.Context) (*domain.DashboardStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM conversations GROUP BY status`)
	if err != nil {
		r.log.Error("Failed to count conversations", "error", err)
		return nil, storeReadError("count conversations", err)
	}
	defer rows.Close()

	stats := &domain.DashboardStats{}
	for rows.Next() {
		var status domain.ConversationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			r.log.Error("Failed to scan conversation count", "error", err)
			return nil, storeReadError("scan count", err)
		}
		stats.Add(status, count)
	}
	if err := rows.Err(); err != nil {
		return nil, storeReadError("count conversations", err)
	}

	return stats, nil
}
