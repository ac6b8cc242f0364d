package dto

// ── 合规指标模块 DTO ──

// MetricListRequest 指标查询参数
type MetricListRequest struct {
	DefinitionID string `form:"definition_id" binding:"omitempty,uuid"`
	PeriodType   string `form:"period_type"   binding:"omitempty,oneof=daily weekly monthly"`
	From         string `form:"from"          binding:"omitempty"` // "2025-01-01"
	To           string `form:"to"            binding:"omitempty"`
}

// MetricResponse 合规指标响应
type MetricResponse struct {
	ID                   string  `json:"id"`
	DefinitionID         string  `json:"definition_id"`
	PeriodType           string  `json:"period_type"`
	PeriodStart          string  `json:"period_start"`
	TrackedCount         int     `json:"tracked_count"`
	MetCount             int     `json:"met_count"`
	BreachedCount        int     `json:"breached_count"`
	WarningCount         int     `json:"warning_count"`
	CancelledCount       int     `json:"cancelled_count"`
	ComplianceRate       float64 `json:"compliance_rate"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`
	AvgPercentageUsed    float64 `json:"avg_percentage_used"`
}
