package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
)

// ── 工作时间计划模块业务错误 ──

var (
	ErrScheduleNotFound      = errors.New("工作时间计划不存在")
	ErrScheduleInvalidWindow = errors.New("工作窗口无效：结束时间必须晚于开始时间，且不可跨天")
	ErrScheduleInvalidTZ     = errors.New("无效的时区标识")
	ErrScheduleDuplicateDay  = errors.New("同一星期几的窗口配置重复")
)

// ScheduleService 工作时间计划业务接口
type ScheduleService interface {
	Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	List(ctx context.Context) ([]dto.ScheduleResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type scheduleService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, logger *zap.Logger) ScheduleService {
	return &scheduleService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *scheduleService) Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, ErrScheduleInvalidTZ
	}
	days, err := buildScheduleDays(req.Days)
	if err != nil {
		return nil, err
	}

	if req.IsDefault {
		if err := s.repo.Schedule.ClearDefault(ctx); err != nil {
			s.logger.Error("清除默认计划标记失败", zap.Error(err))
			return nil, err
		}
	}

	schedule := &model.BusinessSchedule{
		Name:      req.Name,
		Timezone:  req.Timezone,
		IsDefault: req.IsDefault,
	}
	schedule.CreatedBy = &callerID
	schedule.UpdatedBy = &callerID

	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("创建工作时间计划失败", zap.Error(err))
		return nil, err
	}
	if len(days) > 0 {
		if err := s.repo.Schedule.ReplaceDays(ctx, schedule.ScheduleID, days); err != nil {
			s.logger.Error("写入计划窗口失败", zap.String("schedule_id", schedule.ScheduleID), zap.Error(err))
			return nil, err
		}
	}

	return s.GetByID(ctx, schedule.ScheduleID)
}

// ────────────────────── GetByID ──────────────────────

func (s *scheduleService) GetByID(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询工作时间计划失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toScheduleResponse(schedule), nil
}

// ────────────────────── List ──────────────────────

func (s *scheduleService) List(ctx context.Context) ([]dto.ScheduleResponse, error) {
	schedules, err := s.repo.Schedule.List(ctx)
	if err != nil {
		s.logger.Error("列出工作时间计划失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		result = append(result, *toScheduleResponse(&schedules[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *scheduleService) Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询工作时间计划失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, ErrScheduleInvalidTZ
		}
		schedule.Timezone = *req.Timezone
	}
	if req.IsDefault != nil && *req.IsDefault && !schedule.IsDefault {
		if err := s.repo.Schedule.ClearDefault(ctx); err != nil {
			s.logger.Error("清除默认计划标记失败", zap.Error(err))
			return nil, err
		}
		schedule.IsDefault = true
	}
	schedule.UpdatedBy = &callerID

	if err := s.repo.Schedule.Update(ctx, schedule); err != nil {
		s.logger.Error("更新工作时间计划失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if req.Days != nil {
		days, err := buildScheduleDays(req.Days)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Schedule.ReplaceDays(ctx, id, days); err != nil {
			s.logger.Error("更新计划窗口失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
	}

	return s.GetByID(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *scheduleService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.repo.Schedule.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		return err
	}
	if err := s.repo.Schedule.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除工作时间计划失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

// buildScheduleDays 校验并构建窗口行；同日窗口必须唯一且 end > start
func buildScheduleDays(inputs []dto.ScheduleDayInput) ([]model.BusinessScheduleDay, error) {
	seen := make(map[int]bool, len(inputs))
	days := make([]model.BusinessScheduleDay, 0, len(inputs))
	for _, in := range inputs {
		if seen[in.DayOfWeek] {
			return nil, ErrScheduleDuplicateDay
		}
		seen[in.DayOfWeek] = true

		start, err := model.ParseClockMinutes(in.StartTime)
		if err != nil {
			return nil, ErrScheduleInvalidWindow
		}
		end, err := model.ParseClockMinutes(in.EndTime)
		if err != nil {
			return nil, ErrScheduleInvalidWindow
		}
		if end <= start {
			return nil, ErrScheduleInvalidWindow
		}

		days = append(days, model.BusinessScheduleDay{
			DayOfWeek: in.DayOfWeek,
			Enabled:   in.Enabled,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
		})
	}
	return days, nil
}

func toScheduleResponse(schedule *model.BusinessSchedule) *dto.ScheduleResponse {
	days := make([]dto.ScheduleDayResponse, 0, len(schedule.Days))
	for _, d := range schedule.Days {
		days = append(days, dto.ScheduleDayResponse{
			DayOfWeek: d.DayOfWeek,
			Enabled:   d.Enabled,
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
		})
	}
	return &dto.ScheduleResponse{
		ID:        schedule.ScheduleID,
		Name:      schedule.Name,
		Timezone:  schedule.Timezone,
		IsDefault: schedule.IsDefault,
		Days:      days,
		CreatedAt: schedule.CreatedAt.Format(time.RFC3339),
		UpdatedAt: schedule.UpdatedAt.Format(time.RFC3339),
	}
}
