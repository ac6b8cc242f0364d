package model

import "time"

// PeriodType 指标汇总周期类型
type PeriodType string

const (
	PeriodTypeDaily   PeriodType = "daily"
	PeriodTypeWeekly  PeriodType = "weekly"
	PeriodTypeMonthly PeriodType = "monthly"
)

// AllPeriodTypes 全部汇总周期
var AllPeriodTypes = []PeriodType{PeriodTypeDaily, PeriodTypeWeekly, PeriodTypeMonthly}

// PeriodStart 计算时刻 t 所属周期的起始日期（UTC 日期语义）
// daily: 当天；weekly: ISO 周一；monthly: 当月 1 日
func (p PeriodType) PeriodStart(t time.Time) time.Time {
	u := t.UTC()
	switch p {
	case PeriodTypeWeekly:
		wd := int(u.Weekday())
		if wd == 0 {
			wd = 7
		}
		u = u.AddDate(0, 0, -(wd - 1))
	case PeriodTypeMonthly:
		return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SLAMetric 每 (定义, 周期) 的合规统计 — 对应 sla_metrics
// 由指标汇总器 upsert，评估器绝不直接改写
type SLAMetric struct {
	MetricID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"metric_id"`
	DefinitionID string     `gorm:"type:uuid;not null"                             json:"definition_id"`
	PeriodType   PeriodType `gorm:"type:varchar(10);not null"                      json:"period_type"`
	PeriodStart  time.Time  `gorm:"type:date;not null"                             json:"period_start"`

	TrackedCount   int `gorm:"not null;default:0" json:"tracked_count"`
	MetCount       int `gorm:"not null;default:0" json:"met_count"`
	BreachedCount  int `gorm:"not null;default:0" json:"breached_count"`
	WarningCount   int `gorm:"not null;default:0" json:"warning_count"`
	CancelledCount int `gorm:"not null;default:0" json:"cancelled_count"`

	ComplianceRate float64 `gorm:"not null;default:0" json:"compliance_rate"`

	// 增量均值：samples 为均值的样本数，更新时用
	// new_avg = old_avg + (x - old_avg) / new_samples
	AvgResolutionMinutes float64 `gorm:"not null;default:0" json:"avg_resolution_minutes"`
	ResolutionSamples    int     `gorm:"not null;default:0" json:"resolution_samples"`
	AvgPercentageUsed    float64 `gorm:"not null;default:0" json:"avg_percentage_used"`
	PercentageSamples    int     `gorm:"not null;default:0" json:"percentage_samples"`

	BaseModel
}

// TableName 指定表名
func (SLAMetric) TableName() string { return "sla_metrics" }

// RollupWatermark 指标汇总水位线 — 对应 rollup_watermarks
type RollupWatermark struct {
	JobName         string    `gorm:"type:varchar(50);primaryKey"        json:"job_name"`
	LastProcessedAt time.Time `gorm:"not null"                           json:"last_processed_at"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (RollupWatermark) TableName() string { return "rollup_watermarks" }
