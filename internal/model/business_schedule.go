package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"slatrack/backend/internal/calendar"
)

// BusinessSchedule 工作时间计划表 — 对应 business_schedules
// 按租户/实例范围至少有一个计划标记为默认；零启用日的计划合法，
// 但在使用时会触发"无可用工作时间"错误
type BusinessSchedule struct {
	ScheduleID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	Timezone   string `gorm:"type:varchar(64);not null;default:'UTC'"        json:"timezone"`
	IsDefault  bool   `gorm:"not null;default:false"                         json:"is_default"`
	VersionedModel

	// 关联
	Days []BusinessScheduleDay `gorm:"foreignKey:ScheduleID;references:ScheduleID" json:"days,omitempty"`
}

// TableName 指定表名
func (BusinessSchedule) TableName() string { return "business_schedules" }

// BusinessScheduleDay 某个星期几的工作窗口 — 对应 business_schedule_days
type BusinessScheduleDay struct {
	DayID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"day_id"`
	ScheduleID string `gorm:"type:uuid;not null"                             json:"schedule_id"`
	DayOfWeek  int    `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1=周一 … 7=周日
	Enabled    bool   `gorm:"not null;default:false"                         json:"enabled"`
	StartTime  string `gorm:"type:time;not null;default:'09:00'"             json:"start_time"` // "HH:MM"
	EndTime    string `gorm:"type:time;not null;default:'17:00'"             json:"end_time"`   // 必须晚于 StartTime，不跨天
	BaseModel
}

// TableName 指定表名
func (BusinessScheduleDay) TableName() string { return "business_schedule_days" }

// ParseClockMinutes 将 "HH:MM" / "HH:MM:SS" 解析为自零点起的分钟数
func ParseClockMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("无效的时间格式 %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("无效的小时 %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("无效的分钟 %q", s)
	}
	return h*60 + m, nil
}

// ToCalendarSchedule 将模型转换为日历解析器使用的纯计划结构
func (s *BusinessSchedule) ToCalendarSchedule() (*calendar.Schedule, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", s.Timezone, err)
	}

	cs := &calendar.Schedule{Location: loc}
	for i := range s.Days {
		d := &s.Days[i]
		if d.DayOfWeek < 1 || d.DayOfWeek > 7 {
			return nil, fmt.Errorf("无效的星期几 %d", d.DayOfWeek)
		}
		start, err := ParseClockMinutes(d.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := ParseClockMinutes(d.EndTime)
		if err != nil {
			return nil, err
		}
		cs.Days[d.DayOfWeek] = calendar.DayWindow{
			Enabled:     d.Enabled,
			StartMinute: start,
			EndMinute:   end,
		}
	}
	return cs, nil
}
