package dto

import "slatrack/backend/internal/model"

// ── 承诺定义模块 DTO ──

// CreateDefinitionRequest 创建承诺定义请求
type CreateDefinitionRequest struct {
	Name                    string            `json:"name"                      binding:"required,min=2,max=100"`
	Description             string            `json:"description"               binding:"omitempty,max=500"`
	TargetMinutes           int               `json:"target_minutes"            binding:"required,min=1"`
	UseBusinessHours        *bool             `json:"use_business_hours"`
	ScheduleID              *string           `json:"schedule_id"               binding:"omitempty,uuid"`
	CalendarID              *string           `json:"calendar_id"               binding:"omitempty,uuid"`
	WarningThresholdPercent *int              `json:"warning_threshold_percent" binding:"omitempty,min=1,max=100"`
	WarningActions          []model.Action    `json:"warning_actions"`
	BreachActions           []model.Action    `json:"breach_actions"`
	ApplicableConditions    map[string]string `json:"applicable_conditions"`
	Priority                int               `json:"priority"`
}

// UpdateDefinitionRequest 更新承诺定义请求
// 编辑只影响其后创建的 Tracker（计费口径已快照）
type UpdateDefinitionRequest struct {
	Name                    *string           `json:"name"                      binding:"omitempty,min=2,max=100"`
	Description             *string           `json:"description"               binding:"omitempty,max=500"`
	TargetMinutes           *int              `json:"target_minutes"            binding:"omitempty,min=1"`
	UseBusinessHours        *bool             `json:"use_business_hours"`
	ScheduleID              *string           `json:"schedule_id"               binding:"omitempty,uuid"`
	CalendarID              *string           `json:"calendar_id"               binding:"omitempty,uuid"`
	WarningThresholdPercent *int              `json:"warning_threshold_percent" binding:"omitempty,min=1,max=100"`
	WarningActions          []model.Action    `json:"warning_actions"`
	BreachActions           []model.Action    `json:"breach_actions"`
	ApplicableConditions    map[string]string `json:"applicable_conditions"`
	Priority                *int              `json:"priority"`
	IsActive                *bool             `json:"is_active"`
}

// MatchDefinitionRequest 定义匹配预览请求
type MatchDefinitionRequest struct {
	RecordType string            `json:"record_type" binding:"required"`
	Attributes map[string]string `json:"attributes"`
}

// DefinitionResponse 承诺定义响应
type DefinitionResponse struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	Description             string            `json:"description,omitempty"`
	TargetMinutes           int               `json:"target_minutes"`
	UseBusinessHours        bool              `json:"use_business_hours"`
	ScheduleID              *string           `json:"schedule_id,omitempty"`
	CalendarID              *string           `json:"calendar_id,omitempty"`
	WarningThresholdPercent int               `json:"warning_threshold_percent"`
	WarningActions          []model.Action    `json:"warning_actions"`
	BreachActions           []model.Action    `json:"breach_actions"`
	ApplicableConditions    map[string]string `json:"applicable_conditions"`
	Priority                int               `json:"priority"`
	IsActive                bool              `json:"is_active"`
	CreatedAt               string            `json:"created_at"`
	UpdatedAt               string            `json:"updated_at"`
}
