package repository

import (
	"context"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
)

// ScheduleRepository 工作时间计划数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.BusinessSchedule) error
	GetByID(ctx context.Context, id string) (*model.BusinessSchedule, error)
	GetDefault(ctx context.Context) (*model.BusinessSchedule, error)
	List(ctx context.Context) ([]model.BusinessSchedule, error)
	Update(ctx context.Context, schedule *model.BusinessSchedule) error
	ReplaceDays(ctx context.Context, scheduleID string, days []model.BusinessScheduleDay) error
	ClearDefault(ctx context.Context) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepo 创建 ScheduleRepository 实例
func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.BusinessSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.BusinessSchedule, error) {
	var schedule model.BusinessSchedule
	err := r.db.WithContext(ctx).
		Preload("Days").
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) GetDefault(ctx context.Context) (*model.BusinessSchedule, error) {
	var schedule model.BusinessSchedule
	err := r.db.WithContext(ctx).
		Preload("Days").
		Where("is_default = ?", true).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) List(ctx context.Context) ([]model.BusinessSchedule, error) {
	var schedules []model.BusinessSchedule
	err := r.db.WithContext(ctx).
		Preload("Days").
		Order("created_at ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) Update(ctx context.Context, schedule *model.BusinessSchedule) error {
	return r.db.WithContext(ctx).Omit("Days").Save(schedule).Error
}

// ReplaceDays 整体替换计划的星期窗口配置（事务内先删后插）
func (r *scheduleRepo) ReplaceDays(ctx context.Context, scheduleID string, days []model.BusinessScheduleDay) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&model.BusinessScheduleDay{}).Error; err != nil {
			return err
		}
		if len(days) == 0 {
			return nil
		}
		for i := range days {
			days[i].ScheduleID = scheduleID
		}
		return tx.Create(&days).Error
	})
}

// ClearDefault 清除当前默认计划标记（切换默认计划前调用）
func (r *scheduleRepo) ClearDefault(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.BusinessSchedule{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

// Delete 软删除（记录删除人后打 deleted_at 标记）
func (r *scheduleRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.BusinessSchedule{}).
			Where("schedule_id = ?", id).
			Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		return tx.Where("schedule_id = ?", id).Delete(&model.BusinessSchedule{}).Error
	})
}
