package service

import (
	"context"

	"support_chat/internal/domain"
	"support_chat/internal/repository"
	"support_chat/pkg/logger"
)

type StatsService interface {
	GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	log       logger.Logger
}

func NewStatsService(statsRepo repository.StatsRepository, log logger.Logger) StatsService {
	return &statsService{
		statsRepo: statsRepo,
		log:       log,
	}
}

func (s *statsService) GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	return s.statsRepo.CountByStatus(ctx)
}
