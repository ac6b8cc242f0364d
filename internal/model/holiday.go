package model

import (
	"time"

	"slatrack/backend/internal/calendar"
)

// HolidayCalendar 节假日日历表 — 对应 holiday_calendars
type HolidayCalendar struct {
	CalendarID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"calendar_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	Description string `gorm:"type:varchar(500)"                              json:"description,omitempty"`
	VersionedModel

	// 关联
	Holidays []Holiday `gorm:"foreignKey:CalendarID;references:CalendarID" json:"holidays,omitempty"`
}

// TableName 指定表名
func (HolidayCalendar) TableName() string { return "holiday_calendars" }

// Holiday 节假日条目 — 对应 holidays
// 单日或 [date, end_date] 区间；is_recurring 为 true 时按月/日每年匹配
type Holiday struct {
	HolidayID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"holiday_id"`
	CalendarID  string     `gorm:"type:uuid;not null"                             json:"calendar_id"`
	Name        string     `gorm:"type:varchar(100);not null"                     json:"name"`
	Date        time.Time  `gorm:"type:date;not null"                             json:"date"`
	EndDate     *time.Time `gorm:"type:date"                                      json:"end_date,omitempty"`
	IsRecurring bool       `gorm:"not null;default:false"                         json:"is_recurring"`
	BaseModel
}

// TableName 指定表名
func (Holiday) TableName() string { return "holidays" }

// ToHolidaySet 将日历下的节假日条目转换为解析器使用的集合
func (c *HolidayCalendar) ToHolidaySet() *calendar.HolidaySet {
	entries := make([]calendar.HolidayEntry, 0, len(c.Holidays))
	for i := range c.Holidays {
		h := &c.Holidays[i]
		entries = append(entries, calendar.HolidayEntry{
			Date:      h.Date,
			EndDate:   h.EndDate,
			Recurring: h.IsRecurring,
		})
	}
	return calendar.NewHolidaySet(entries)
}
