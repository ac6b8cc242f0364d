package dto

// ── 承诺跟踪模块 DTO ──

// StartTrackerRequest 启动跟踪请求
// DefinitionID 为空时按 record_type + attributes 自动匹配定义
type StartTrackerRequest struct {
	DefinitionID  string            `json:"definition_id"  binding:"omitempty,uuid"`
	RecordType    string            `json:"record_type"    binding:"required,min=1,max=50"`
	RecordID      string            `json:"record_id"      binding:"required,min=1,max=100"`
	Attributes    map[string]string `json:"attributes"`
	CorrelationID string            `json:"correlation_id" binding:"omitempty,max=100"`
}

// PauseTrackerRequest 暂停请求
type PauseTrackerRequest struct {
	Reason        string `json:"reason"         binding:"omitempty,max=500"`
	CorrelationID string `json:"correlation_id" binding:"omitempty,max=100"`
}

// ResumeTrackerRequest 恢复请求
type ResumeTrackerRequest struct {
	CorrelationID string `json:"correlation_id" binding:"omitempty,max=100"`
}

// StopTrackerRequest 完成请求
type StopTrackerRequest struct {
	Outcome       string `json:"outcome"        binding:"omitempty,max=100"` // 外部记录系统的完成语义
	CorrelationID string `json:"correlation_id" binding:"omitempty,max=100"`
}

// CancelTrackerRequest 取消请求
type CancelTrackerRequest struct {
	Reason        string `json:"reason"         binding:"omitempty,max=500"`
	CorrelationID string `json:"correlation_id" binding:"omitempty,max=100"`
}

// TrackerListRequest 跟踪列表查询参数
type TrackerListRequest struct {
	DefinitionID string `form:"definition_id" binding:"omitempty,uuid"`
	Status       string `form:"status"        binding:"omitempty,oneof=active paused completed cancelled breached"`
	RecordType   string `form:"record_type"`
	Page         int    `form:"page"          binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size"     binding:"omitempty,min=1,max=200"`
}

// TrackerResponse 承诺跟踪响应
type TrackerResponse struct {
	ID                      string  `json:"id"`
	DefinitionID            string  `json:"definition_id"`
	RecordType              string  `json:"record_type"`
	RecordID                string  `json:"record_id"`
	Status                  string  `json:"status"`
	TargetMinutes           int     `json:"target_minutes"`
	UseBusinessHours        bool    `json:"use_business_hours"`
	WarningThresholdPercent int     `json:"warning_threshold_percent"`
	StartedAt               string  `json:"started_at"`
	TargetAt                string  `json:"target_at"`
	WarningAt               string  `json:"warning_at"`
	PausedAt                *string `json:"paused_at,omitempty"`
	TotalPausedMinutes      int     `json:"total_paused_minutes"`
	CompletedAt             *string `json:"completed_at,omitempty"`
	ActualMinutes           *int    `json:"actual_minutes,omitempty"`
	PercentageUsed          float64 `json:"percentage_used"`
	WarningSent             bool    `json:"warning_sent"`
	WarningSentAt           *string `json:"warning_sent_at,omitempty"`
	Breached                bool    `json:"breached"`
	BreachedAt              *string `json:"breached_at,omitempty"`
}

// TrackerEventResponse 状态流转历史响应
type TrackerEventResponse struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
