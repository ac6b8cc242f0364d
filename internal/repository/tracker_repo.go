package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
	pkgerrors "slatrack/backend/pkg/errors"
)

// TrackerFilter 跟踪列表过滤条件
type TrackerFilter struct {
	DefinitionID string
	Status       string
	RecordType   string
	Page         int
	PageSize     int
}

// TrackerRepository 承诺跟踪数据访问接口
//
// 写路径约定：生命周期操作与评估器都通过 UpdateCAS 提交变更，
// 以 version 列做乐观锁；评估器额外携带期望状态，保证外部取消
// 永远赢过在途的 tick 评估
type TrackerRepository interface {
	Create(ctx context.Context, tracker *model.SLATracker) error
	GetByID(ctx context.Context, id string) (*model.SLATracker, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*model.SLATracker, error)
	List(ctx context.Context, filter *TrackerFilter) ([]model.SLATracker, int64, error)
	ListActive(ctx context.Context) ([]model.SLATracker, error)
	ListFinishedBetween(ctx context.Context, from, to time.Time) ([]model.SLATracker, error)
	UpdateCAS(ctx context.Context, tracker *model.SLATracker, expectStatus model.TrackerStatus) error
	AppendEvent(ctx context.Context, event *model.TrackerEvent) error
	HasEventWithCorrelation(ctx context.Context, trackerID, correlationID string) (bool, error)
	ListEvents(ctx context.Context, trackerID string) ([]model.TrackerEvent, error)
}

type trackerRepo struct {
	db *gorm.DB
}

// NewTrackerRepo 创建 TrackerRepository 实例
func NewTrackerRepo(db *gorm.DB) TrackerRepository {
	return &trackerRepo{db: db}
}

func (r *trackerRepo) Create(ctx context.Context, tracker *model.SLATracker) error {
	return r.db.WithContext(ctx).Create(tracker).Error
}

func (r *trackerRepo) GetByID(ctx context.Context, id string) (*model.SLATracker, error) {
	var tracker model.SLATracker
	err := r.db.WithContext(ctx).
		Where("tracker_id = ?", id).
		First(&tracker).Error
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (r *trackerRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*model.SLATracker, error) {
	var tracker model.SLATracker
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		First(&tracker).Error
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (r *trackerRepo) List(ctx context.Context, filter *TrackerFilter) ([]model.SLATracker, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.SLATracker{})
	if filter.DefinitionID != "" {
		q = q.Where("definition_id = ?", filter.DefinitionID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RecordType != "" {
		q = q.Where("record_type = ?", filter.RecordType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var trackers []model.SLATracker
	err := q.Order("started_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&trackers).Error
	return trackers, total, err
}

// ListActive 列出全部待评估（status=active）的跟踪
func (r *trackerRepo) ListActive(ctx context.Context) ([]model.SLATracker, error) {
	var trackers []model.SLATracker
	err := r.db.WithContext(ctx).
		Where("status = ?", model.TrackerStatusActive).
		Order("target_at ASC").
		Find(&trackers).Error
	return trackers, err
}

// ListFinishedBetween 列出 finished_at 落在 (from, to] 的跟踪，供指标汇总扫描
func (r *trackerRepo) ListFinishedBetween(ctx context.Context, from, to time.Time) ([]model.SLATracker, error) {
	var trackers []model.SLATracker
	err := r.db.WithContext(ctx).
		Where("finished_at > ? AND finished_at <= ?", from, to).
		Order("finished_at ASC").
		Find(&trackers).Error
	return trackers, err
}

// UpdateCAS 乐观锁条件更新
//
// WHERE 同时携带 version 与期望状态：版本冲突或状态已被并发改变
// （如外部取消赢过在途 tick）时零行命中，返回 ErrOptimisticLock，
// 调用方视场景重试或放弃
func (r *trackerRepo) UpdateCAS(ctx context.Context, tracker *model.SLATracker, expectStatus model.TrackerStatus) error {
	updates := map[string]interface{}{
		"status":               tracker.Status,
		"target_at":            tracker.TargetAt,
		"warning_at":           tracker.WarningAt,
		"segment_started_at":   tracker.SegmentStartedAt,
		"consumed_minutes":     tracker.ConsumedMinutes,
		"paused_at":            tracker.PausedAt,
		"total_paused_minutes": tracker.TotalPausedMinutes,
		"completed_at":         tracker.CompletedAt,
		"finished_at":          tracker.FinishedAt,
		"actual_minutes":       tracker.ActualMinutes,
		"percentage_used":      tracker.PercentageUsed,
		"warning_sent":         tracker.WarningSent,
		"warning_sent_at":      tracker.WarningSentAt,
		"breached":             tracker.Breached,
		"breached_at":          tracker.BreachedAt,
		"updated_at":           time.Now(),
		"updated_by":           tracker.UpdatedBy,
		"version":              tracker.Version + 1,
	}

	res := r.db.WithContext(ctx).
		Model(&model.SLATracker{}).
		Where("tracker_id = ? AND version = ? AND status = ?", tracker.TrackerID, tracker.Version, expectStatus).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	tracker.Version++
	return nil
}

func (r *trackerRepo) AppendEvent(ctx context.Context, event *model.TrackerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// HasEventWithCorrelation 判断某跟踪是否已应用过携带该关联 ID 的事件（幂等去重）
func (r *trackerRepo) HasEventWithCorrelation(ctx context.Context, trackerID, correlationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TrackerEvent{}).
		Where("tracker_id = ? AND correlation_id = ?", trackerID, correlationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *trackerRepo) ListEvents(ctx context.Context, trackerID string) ([]model.TrackerEvent, error) {
	var events []model.TrackerEvent
	err := r.db.WithContext(ctx).
		Where("tracker_id = ?", trackerID).
		Order("occurred_at ASC, created_at ASC").
		Find(&events).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return events, nil
}
