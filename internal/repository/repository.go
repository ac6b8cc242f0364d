package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Schedule   ScheduleRepository
	Holiday    HolidayRepository
	Definition DefinitionRepository
	Tracker    TrackerRepository
	Metric     MetricRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Schedule:   NewScheduleRepo(db),
		Holiday:    NewHolidayRepo(db),
		Definition: NewDefinitionRepo(db),
		Tracker:    NewTrackerRepo(db),
		Metric:     NewMetricRepo(db),
	}
}
