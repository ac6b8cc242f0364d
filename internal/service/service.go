package service

import (
	"go.uber.org/zap"

	"slatrack/backend/internal/repository"
	"slatrack/backend/pkg/clock"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Schedule   ScheduleService
	Holiday    HolidayService
	Definition DefinitionService
	Tracker    TrackerService
	Metrics    MetricsService
}

// NewService 创建 Service 聚合
func NewService(
	repo *repository.Repository,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		Schedule:   NewScheduleService(repo, logger),
		Holiday:    NewHolidayService(repo, logger),
		Definition: NewDefinitionService(repo, logger),
		Tracker:    NewTrackerService(repo, clk, logger),
		Metrics:    NewMetricsService(repo, logger),
	}
}
