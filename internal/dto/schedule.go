package dto

// ── 工作时间计划模块 DTO ──

// ScheduleDayInput 单个星期几的窗口配置
type ScheduleDayInput struct {
	DayOfWeek int    `json:"day_of_week" binding:"required,min=1,max=7"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time" binding:"required"` // "09:00"
	EndTime   string `json:"end_time"   binding:"required"` // "17:00"
}

// CreateScheduleRequest 创建工作时间计划请求
type CreateScheduleRequest struct {
	Name      string             `json:"name"     binding:"required,min=2,max=100"`
	Timezone  string             `json:"timezone" binding:"required"`
	IsDefault bool               `json:"is_default"`
	Days      []ScheduleDayInput `json:"days"     binding:"omitempty,max=7,dive"`
}

// UpdateScheduleRequest 更新工作时间计划请求
type UpdateScheduleRequest struct {
	Name      *string            `json:"name"      binding:"omitempty,min=2,max=100"`
	Timezone  *string            `json:"timezone"`
	IsDefault *bool              `json:"is_default"`
	Days      []ScheduleDayInput `json:"days"      binding:"omitempty,max=7,dive"`
}

// ScheduleDayResponse 星期几窗口响应
type ScheduleDayResponse struct {
	DayOfWeek int    `json:"day_of_week"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleResponse 工作时间计划响应
type ScheduleResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Timezone  string                `json:"timezone"`
	IsDefault bool                  `json:"is_default"`
	Days      []ScheduleDayResponse `json:"days"`
	CreatedAt string                `json:"created_at"`
	UpdatedAt string                `json:"updated_at"`
}
