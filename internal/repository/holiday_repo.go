package repository

import (
	"context"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
)

// HolidayRepository 节假日日历数据访问接口
type HolidayRepository interface {
	CreateCalendar(ctx context.Context, cal *model.HolidayCalendar) error
	GetCalendarByID(ctx context.Context, id string) (*model.HolidayCalendar, error)
	ListCalendars(ctx context.Context) ([]model.HolidayCalendar, error)
	UpdateCalendar(ctx context.Context, cal *model.HolidayCalendar) error
	DeleteCalendar(ctx context.Context, id string, deletedBy string) error
	AddHoliday(ctx context.Context, holiday *model.Holiday) error
	AddHolidays(ctx context.Context, holidays []model.Holiday) error
	DeleteHoliday(ctx context.Context, calendarID, holidayID string) error
}

type holidayRepo struct {
	db *gorm.DB
}

// NewHolidayRepo 创建 HolidayRepository 实例
func NewHolidayRepo(db *gorm.DB) HolidayRepository {
	return &holidayRepo{db: db}
}

func (r *holidayRepo) CreateCalendar(ctx context.Context, cal *model.HolidayCalendar) error {
	return r.db.WithContext(ctx).Create(cal).Error
}

func (r *holidayRepo) GetCalendarByID(ctx context.Context, id string) (*model.HolidayCalendar, error) {
	var cal model.HolidayCalendar
	err := r.db.WithContext(ctx).
		Preload("Holidays", func(db *gorm.DB) *gorm.DB {
			return db.Order("date ASC")
		}).
		Where("calendar_id = ?", id).
		First(&cal).Error
	if err != nil {
		return nil, err
	}
	return &cal, nil
}

func (r *holidayRepo) ListCalendars(ctx context.Context) ([]model.HolidayCalendar, error) {
	var cals []model.HolidayCalendar
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&cals).Error
	return cals, err
}

func (r *holidayRepo) UpdateCalendar(ctx context.Context, cal *model.HolidayCalendar) error {
	return r.db.WithContext(ctx).Omit("Holidays").Save(cal).Error
}

// DeleteCalendar 软删除日历（条目保留，查询时随日历一并隐藏）
func (r *holidayRepo) DeleteCalendar(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.HolidayCalendar{}).
			Where("calendar_id = ?", id).
			Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		return tx.Where("calendar_id = ?", id).Delete(&model.HolidayCalendar{}).Error
	})
}

func (r *holidayRepo) AddHoliday(ctx context.Context, holiday *model.Holiday) error {
	return r.db.WithContext(ctx).Create(holiday).Error
}

func (r *holidayRepo) AddHolidays(ctx context.Context, holidays []model.Holiday) error {
	if len(holidays) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&holidays).Error
}

func (r *holidayRepo) DeleteHoliday(ctx context.Context, calendarID, holidayID string) error {
	return r.db.WithContext(ctx).
		Where("calendar_id = ? AND holiday_id = ?", calendarID, holidayID).
		Delete(&model.Holiday{}).Error
}
