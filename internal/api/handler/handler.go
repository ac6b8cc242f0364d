package handler

import "slatrack/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule   *ScheduleHandler
	Holiday    *HolidayHandler
	Definition *DefinitionHandler
	Tracker    *TrackerHandler
	Metrics    *MetricsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule:   NewScheduleHandler(svc.Schedule),
		Holiday:    NewHolidayHandler(svc.Holiday),
		Definition: NewDefinitionHandler(svc.Definition),
		Tracker:    NewTrackerHandler(svc.Tracker),
		Metrics:    NewMetricsHandler(svc.Metrics),
	}
}
