package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/internal/calendar"
	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
	"slatrack/backend/pkg/clock"
	pkgerrors "slatrack/backend/pkg/errors"
)

// ── 承诺跟踪模块业务错误 ──

var (
	ErrTrackerNotFound     = errors.New("承诺跟踪不存在")
	ErrTrackerInvalidState = errors.New("当前状态不允许该操作")
	ErrTrackerNoSchedule   = errors.New("未找到可用的工作时间计划")
	ErrTrackerConflict     = errors.New("并发冲突，请重试")
	ErrNoDefinitionMatched = errors.New("没有匹配该记录的承诺定义")
)

// 乐观锁冲突时的重试次数
const casMaxRetries = 3

// TrackerService 承诺跟踪生命周期业务接口
//
// 状态机：
//
//	active ──pause──▶ paused ──resume──▶ active
//	active|paused ──stop──▶ completed
//	active|paused ──cancel──▶ cancelled
//	active ──(评估器超时)──▶ breached
//
// completed / cancelled / breached 为终态，任何操作返回 ErrTrackerInvalidState
type TrackerService interface {
	Start(ctx context.Context, req *dto.StartTrackerRequest, callerID string) (*dto.TrackerResponse, error)
	Pause(ctx context.Context, id string, req *dto.PauseTrackerRequest, callerID string) (*dto.TrackerResponse, error)
	Resume(ctx context.Context, id string, req *dto.ResumeTrackerRequest, callerID string) (*dto.TrackerResponse, error)
	Stop(ctx context.Context, id string, req *dto.StopTrackerRequest, callerID string) (*dto.TrackerResponse, error)
	Cancel(ctx context.Context, id string, req *dto.CancelTrackerRequest, callerID string) (*dto.TrackerResponse, error)
	GetByID(ctx context.Context, id string) (*dto.TrackerResponse, error)
	List(ctx context.Context, req *dto.TrackerListRequest) ([]dto.TrackerResponse, int64, error)
	ListEvents(ctx context.Context, id string) ([]dto.TrackerEventResponse, error)
}

type trackerService struct {
	repo   *repository.Repository
	clk    clock.Clock
	logger *zap.Logger
}

// NewTrackerService 创建 TrackerService 实例
func NewTrackerService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) TrackerService {
	return &trackerService{repo: repo, clk: clk, logger: logger}
}

// ────────────────────── 计时口径 ──────────────────────

// resolveAccounting 按快照字段解析计时口径
// 快照未绑定计划时回落到默认计划；两者都没有返回 ErrTrackerNoSchedule
func (s *trackerService) resolveAccounting(ctx context.Context, useBusinessHours bool, scheduleID, calendarID *string) (*calendar.Accounting, error) {
	if !useBusinessHours {
		return calendar.NaturalTime(), nil
	}

	var (
		schedule *model.BusinessSchedule
		err      error
	)
	if scheduleID != nil {
		schedule, err = s.repo.Schedule.GetByID(ctx, *scheduleID)
	} else {
		schedule, err = s.repo.Schedule.GetDefault(ctx)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackerNoSchedule
		}
		return nil, err
	}

	cs, err := schedule.ToCalendarSchedule()
	if err != nil {
		return nil, err
	}

	acct := &calendar.Accounting{Schedule: cs}
	if calendarID != nil {
		cal, err := s.repo.Holiday.GetCalendarByID(ctx, *calendarID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrHolidayCalendarNotFound
			}
			return nil, err
		}
		acct.Holidays = cal.ToHolidaySet()
	}
	return acct, nil
}

// ────────────────────── Start ──────────────────────

// Start 启动承诺跟踪
//
// 定义选择：请求显式指定 definition_id，否则按 record_type +
// attributes 在启用的定义中自动匹配。计费口径字段当场快照到
// Tracker 上，定义的后续编辑不影响在途跟踪。
//
// 幂等：携带 correlation_id 的重复请求返回首次创建的跟踪。
func (s *trackerService) Start(ctx context.Context, req *dto.StartTrackerRequest, callerID string) (*dto.TrackerResponse, error) {
	if req.CorrelationID != "" {
		existing, err := s.repo.Tracker.GetByCorrelationID(ctx, req.CorrelationID)
		if err == nil {
			return toTrackerResponse(existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	def, err := s.selectDefinition(ctx, req)
	if err != nil {
		return nil, err
	}

	acct, err := s.resolveAccounting(ctx, def.UseBusinessHours, def.ScheduleID, def.CalendarID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	targetAt, err := acct.Advance(now, def.TargetMinutes)
	if err != nil {
		return nil, err
	}
	warningAt, err := acct.Advance(now, def.TargetMinutes*def.WarningThresholdPercent/100)
	if err != nil {
		return nil, err
	}

	tracker := &model.SLATracker{
		DefinitionID:            def.DefinitionID,
		RecordType:              req.RecordType,
		RecordID:                req.RecordID,
		Status:                  model.TrackerStatusActive,
		TargetMinutes:           def.TargetMinutes,
		UseBusinessHours:        def.UseBusinessHours,
		ScheduleID:              def.ScheduleID,
		CalendarID:              def.CalendarID,
		WarningThresholdPercent: def.WarningThresholdPercent,
		StartedAt:               now,
		TargetAt:                targetAt,
		WarningAt:               warningAt,
		SegmentStartedAt:        now,
	}
	if req.CorrelationID != "" {
		tracker.CorrelationID = &req.CorrelationID
	}
	tracker.CreatedBy = &callerID
	tracker.UpdatedBy = &callerID

	if err := s.repo.Tracker.Create(ctx, tracker); err != nil {
		// 唯一约束竞争：并发重复启动时返回先到者
		if req.CorrelationID != "" {
			if existing, gerr := s.repo.Tracker.GetByCorrelationID(ctx, req.CorrelationID); gerr == nil {
				return toTrackerResponse(existing), nil
			}
		}
		s.logger.Error("创建承诺跟踪失败",
			zap.String("record_type", req.RecordType),
			zap.String("record_id", req.RecordID),
			zap.Error(err),
		)
		return nil, err
	}

	s.appendEvent(ctx, tracker.TrackerID, "", model.TrackerStatusActive, "启动跟踪", req.CorrelationID, now)

	s.logger.Info("承诺跟踪已启动",
		zap.String("tracker_id", tracker.TrackerID),
		zap.String("definition_id", def.DefinitionID),
		zap.String("record_id", req.RecordID),
		zap.Time("target_at", targetAt),
	)
	return toTrackerResponse(tracker), nil
}

// selectDefinition 解析请求应使用的承诺定义
func (s *trackerService) selectDefinition(ctx context.Context, req *dto.StartTrackerRequest) (*model.SLADefinition, error) {
	if req.DefinitionID != "" {
		def, err := s.repo.Definition.GetByID(ctx, req.DefinitionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDefinitionNotFound
			}
			return nil, err
		}
		if !def.IsActive {
			return nil, ErrDefinitionInactive
		}
		return def, nil
	}

	defs, err := s.repo.Definition.List(ctx, true)
	if err != nil {
		return nil, err
	}
	matched := matchDefinition(defs, req.RecordType, req.Attributes)
	if matched == nil {
		return nil, ErrNoDefinitionMatched
	}
	return matched, nil
}

// ────────────────────── Pause ──────────────────────

// Pause 暂停计时
// 当前计时段的业务分钟结转进 consumed_minutes，暂停期间不累计进度
func (s *trackerService) Pause(ctx context.Context, id string, req *dto.PauseTrackerRequest, callerID string) (*dto.TrackerResponse, error) {
	return s.transition(ctx, id, req.CorrelationID, func(tracker *model.SLATracker, now time.Time) error {
		if tracker.Status != model.TrackerStatusActive {
			return ErrTrackerInvalidState
		}
		acct, err := s.resolveAccounting(ctx, tracker.UseBusinessHours, tracker.ScheduleID, tracker.CalendarID)
		if err != nil {
			return err
		}

		tracker.ConsumedMinutes += acct.Elapsed(tracker.SegmentStartedAt, now)
		tracker.Status = model.TrackerStatusPaused
		tracker.PausedAt = &now
		tracker.UpdatedBy = &callerID
		return nil
	}, model.TrackerStatusActive, model.TrackerStatusPaused, req.Reason, callerID)
}

// ────────────────────── Resume ──────────────────────

// Resume 恢复计时
//
// 截止时间按剩余额度重算：remaining = target − consumed，
// target_at = advance(now, remaining)。绝不使用 total_paused_minutes
// 平移旧截止时间，该字段仅供审计。
func (s *trackerService) Resume(ctx context.Context, id string, req *dto.ResumeTrackerRequest, callerID string) (*dto.TrackerResponse, error) {
	return s.transition(ctx, id, req.CorrelationID, func(tracker *model.SLATracker, now time.Time) error {
		if tracker.Status != model.TrackerStatusPaused {
			return ErrTrackerInvalidState
		}
		acct, err := s.resolveAccounting(ctx, tracker.UseBusinessHours, tracker.ScheduleID, tracker.CalendarID)
		if err != nil {
			return err
		}

		if tracker.PausedAt != nil {
			tracker.TotalPausedMinutes += int(now.Sub(*tracker.PausedAt).Minutes())
		}

		remaining := tracker.TargetMinutes - tracker.ConsumedMinutes
		if remaining < 0 {
			remaining = 0
		}
		targetAt, err := acct.Advance(now, remaining)
		if err != nil {
			return err
		}
		tracker.TargetAt = targetAt

		if !tracker.WarningSent {
			warnBudget := tracker.TargetMinutes*tracker.WarningThresholdPercent/100 - tracker.ConsumedMinutes
			if warnBudget < 0 {
				warnBudget = 0
			}
			warningAt, err := acct.Advance(now, warnBudget)
			if err != nil {
				return err
			}
			tracker.WarningAt = warningAt
		}

		tracker.Status = model.TrackerStatusActive
		tracker.SegmentStartedAt = now
		tracker.PausedAt = nil
		tracker.UpdatedBy = &callerID
		return nil
	}, model.TrackerStatusPaused, model.TrackerStatusActive, "", callerID)
}

// ────────────────────── Stop ──────────────────────

// Stop 记录完成，跟踪进入 completed 终态并结算实际用时
func (s *trackerService) Stop(ctx context.Context, id string, req *dto.StopTrackerRequest, callerID string) (*dto.TrackerResponse, error) {
	reason := "记录完成"
	if req.Outcome != "" {
		reason = req.Outcome
	}
	return s.transition(ctx, id, req.CorrelationID, func(tracker *model.SLATracker, now time.Time) error {
		if tracker.Status != model.TrackerStatusActive && tracker.Status != model.TrackerStatusPaused {
			return ErrTrackerInvalidState
		}
		acct, err := s.resolveAccounting(ctx, tracker.UseBusinessHours, tracker.ScheduleID, tracker.CalendarID)
		if err != nil {
			return err
		}

		s.settle(tracker, acct, now)
		tracker.Status = model.TrackerStatusCompleted
		tracker.CompletedAt = &now
		tracker.FinishedAt = &now
		tracker.PausedAt = nil
		tracker.UpdatedBy = &callerID
		return nil
	}, "", model.TrackerStatusCompleted, reason, callerID)
}

// ────────────────────── Cancel ──────────────────────

// Cancel 取消跟踪（终态，不计入达标率）
func (s *trackerService) Cancel(ctx context.Context, id string, req *dto.CancelTrackerRequest, callerID string) (*dto.TrackerResponse, error) {
	reason := "取消跟踪"
	if req.Reason != "" {
		reason = req.Reason
	}
	return s.transition(ctx, id, req.CorrelationID, func(tracker *model.SLATracker, now time.Time) error {
		if tracker.Status != model.TrackerStatusActive && tracker.Status != model.TrackerStatusPaused {
			return ErrTrackerInvalidState
		}
		acct, err := s.resolveAccounting(ctx, tracker.UseBusinessHours, tracker.ScheduleID, tracker.CalendarID)
		if err != nil {
			return err
		}

		s.settle(tracker, acct, now)
		tracker.Status = model.TrackerStatusCancelled
		tracker.FinishedAt = &now
		tracker.PausedAt = nil
		tracker.UpdatedBy = &callerID
		return nil
	}, "", model.TrackerStatusCancelled, reason, callerID)
}

// settle 结算终态时刻的实际用时与消耗百分比
//
// consumed_minutes / percentage_used 按计费口径（业务分钟）结算；
// actual_minutes 是报表口径的自然时长：now − started_at − total_paused_minutes，
// 暂停中结束时先把在途暂停段并入 total_paused_minutes
func (s *trackerService) settle(tracker *model.SLATracker, acct *calendar.Accounting, now time.Time) {
	progress := tracker.ConsumedMinutes
	if tracker.Status == model.TrackerStatusActive {
		progress += acct.Elapsed(tracker.SegmentStartedAt, now)
	}
	tracker.ConsumedMinutes = progress

	if tracker.PausedAt != nil {
		tracker.TotalPausedMinutes += int(now.Sub(*tracker.PausedAt).Minutes())
	}
	actual := int(now.Sub(tracker.StartedAt).Minutes()) - tracker.TotalPausedMinutes
	if actual < 0 {
		actual = 0
	}
	tracker.ActualMinutes = &actual

	if tracker.TargetMinutes > 0 {
		tracker.PercentageUsed = float64(progress) / float64(tracker.TargetMinutes) * 100
	}
}

// ────────────────────── 查询 ──────────────────────

func (s *trackerService) GetByID(ctx context.Context, id string) (*dto.TrackerResponse, error) {
	tracker, err := s.repo.Tracker.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackerNotFound
		}
		s.logger.Error("查询承诺跟踪失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toTrackerResponse(tracker), nil
}

func (s *trackerService) List(ctx context.Context, req *dto.TrackerListRequest) ([]dto.TrackerResponse, int64, error) {
	filter := &repository.TrackerFilter{
		DefinitionID: req.DefinitionID,
		Status:       req.Status,
		RecordType:   req.RecordType,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}
	trackers, total, err := s.repo.Tracker.List(ctx, filter)
	if err != nil {
		s.logger.Error("列出承诺跟踪失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.TrackerResponse, 0, len(trackers))
	for i := range trackers {
		result = append(result, *toTrackerResponse(&trackers[i]))
	}
	return result, total, nil
}

func (s *trackerService) ListEvents(ctx context.Context, id string) ([]dto.TrackerEventResponse, error) {
	if _, err := s.repo.Tracker.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackerNotFound
		}
		return nil, err
	}
	events, err := s.repo.Tracker.ListEvents(ctx, id)
	if err != nil {
		s.logger.Error("查询状态流转历史失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	result := make([]dto.TrackerEventResponse, 0, len(events))
	for _, e := range events {
		result = append(result, dto.TrackerEventResponse{
			ID:         e.EventID,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		})
	}
	return result, nil
}

// ── 内部辅助方法 ──

// transition 生命周期操作的公共骨架
//
//   - 携带 correlation_id 的重复请求直接返回当前状态（幂等无操作）
//   - 通过 UpdateCAS 提交，乐观锁冲突时重取重算，最多 casMaxRetries 次
//   - expectFrom 为空时以加载到的当前状态作为 CAS 期望状态
func (s *trackerService) transition(
	ctx context.Context,
	id string,
	correlationID string,
	mutate func(tracker *model.SLATracker, now time.Time) error,
	expectFrom model.TrackerStatus,
	to model.TrackerStatus,
	reason string,
	callerID string,
) (*dto.TrackerResponse, error) {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		tracker, err := s.repo.Tracker.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTrackerNotFound
			}
			return nil, err
		}

		if correlationID != "" {
			applied, err := s.repo.Tracker.HasEventWithCorrelation(ctx, id, correlationID)
			if err != nil {
				return nil, err
			}
			if applied {
				return toTrackerResponse(tracker), nil
			}
		}

		fromStatus := tracker.Status
		now := s.clk.Now()
		if err := mutate(tracker, now); err != nil {
			return nil, err
		}

		casExpect := expectFrom
		if casExpect == "" {
			casExpect = fromStatus
		}
		if err := s.repo.Tracker.UpdateCAS(ctx, tracker, casExpect); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Debug("乐观锁冲突，重试",
					zap.String("tracker_id", id),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			s.logger.Error("更新承诺跟踪失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}

		s.appendEvent(ctx, id, fromStatus, to, reason, correlationID, now)

		s.logger.Info("承诺跟踪状态变更",
			zap.String("tracker_id", id),
			zap.String("from", string(fromStatus)),
			zap.String("to", string(to)),
		)
		return toTrackerResponse(tracker), nil
	}
	return nil, ErrTrackerConflict
}

// appendEvent 追加状态流转历史；写入失败只记日志，不影响主流程
func (s *trackerService) appendEvent(ctx context.Context, trackerID string, from, to model.TrackerStatus, reason, correlationID string, occurredAt time.Time) {
	event := &model.TrackerEvent{
		TrackerID:  trackerID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		OccurredAt: occurredAt,
	}
	if correlationID != "" {
		event.CorrelationID = &correlationID
	}
	if err := s.repo.Tracker.AppendEvent(ctx, event); err != nil {
		s.logger.Error("写入状态流转历史失败",
			zap.String("tracker_id", trackerID),
			zap.Error(err),
		)
	}
}

func toTrackerResponse(tracker *model.SLATracker) *dto.TrackerResponse {
	resp := &dto.TrackerResponse{
		ID:                      tracker.TrackerID,
		DefinitionID:            tracker.DefinitionID,
		RecordType:              tracker.RecordType,
		RecordID:                tracker.RecordID,
		Status:                  string(tracker.Status),
		TargetMinutes:           tracker.TargetMinutes,
		UseBusinessHours:        tracker.UseBusinessHours,
		WarningThresholdPercent: tracker.WarningThresholdPercent,
		StartedAt:               tracker.StartedAt.Format(time.RFC3339),
		TargetAt:                tracker.TargetAt.Format(time.RFC3339),
		WarningAt:               tracker.WarningAt.Format(time.RFC3339),
		TotalPausedMinutes:      tracker.TotalPausedMinutes,
		ActualMinutes:           tracker.ActualMinutes,
		PercentageUsed:          tracker.PercentageUsed,
		WarningSent:             tracker.WarningSent,
		Breached:                tracker.Breached,
	}
	resp.PausedAt = formatTimePtr(tracker.PausedAt)
	resp.CompletedAt = formatTimePtr(tracker.CompletedAt)
	resp.WarningSentAt = formatTimePtr(tracker.WarningSentAt)
	resp.BreachedAt = formatTimePtr(tracker.BreachedAt)
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
