package model

import "time"

// TrackerStatus Tracker 状态机取值
type TrackerStatus string

const (
	TrackerStatusActive    TrackerStatus = "active"
	TrackerStatusPaused    TrackerStatus = "paused"
	TrackerStatusCompleted TrackerStatus = "completed"
	TrackerStatusCancelled TrackerStatus = "cancelled"
	TrackerStatusBreached  TrackerStatus = "breached"
)

// IsFinal 判断状态是否为终态
func (s TrackerStatus) IsFinal() bool {
	return s == TrackerStatusCompleted || s == TrackerStatusCancelled || s == TrackerStatusBreached
}

// SLATracker 承诺跟踪实例 — 对应 sla_trackers
//
// 计时口径：
//   - SegmentStartedAt 为当前活跃计时段的起点（开始时刻或最近一次恢复时刻）
//   - ConsumedMinutes 累计各已关闭计时段消耗的业务分钟，在每次暂停时结转
//   - 当前进度 = ConsumedMinutes + elapsed(SegmentStartedAt, now)
//   - TotalPausedMinutes 仅供审计/报表展示，绝不参与截止时间重算
type SLATracker struct {
	TrackerID    string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"tracker_id"`
	DefinitionID string        `gorm:"type:uuid;not null"                             json:"definition_id"`
	RecordType   string        `gorm:"type:varchar(50);not null"                      json:"record_type"`
	RecordID     string        `gorm:"type:varchar(100);not null"                     json:"record_id"`
	Status       TrackerStatus `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`

	// 定义快照（计费口径不可变）
	TargetMinutes           int     `gorm:"not null" json:"target_minutes"`
	UseBusinessHours        bool    `gorm:"not null" json:"use_business_hours"`
	ScheduleID              *string `gorm:"type:uuid" json:"schedule_id,omitempty"`
	CalendarID              *string `gorm:"type:uuid" json:"calendar_id,omitempty"`
	WarningThresholdPercent int     `gorm:"not null" json:"warning_threshold_percent"`

	StartedAt          time.Time  `gorm:"not null"           json:"started_at"`
	TargetAt           time.Time  `gorm:"not null"           json:"target_at"`
	WarningAt          time.Time  `gorm:"not null"           json:"warning_at"`
	SegmentStartedAt   time.Time  `gorm:"not null"           json:"segment_started_at"`
	ConsumedMinutes    int        `gorm:"not null;default:0" json:"consumed_minutes"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	TotalPausedMinutes int        `gorm:"not null;default:0" json:"total_paused_minutes"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	ActualMinutes      *int       `json:"actual_minutes,omitempty"`
	PercentageUsed     float64    `gorm:"not null;default:0" json:"percentage_used"`
	WarningSent        bool       `gorm:"not null;default:false" json:"warning_sent"`
	WarningSentAt      *time.Time `json:"warning_sent_at,omitempty"`
	Breached           bool       `gorm:"not null;default:false" json:"breached"`
	BreachedAt         *time.Time `json:"breached_at,omitempty"`
	CorrelationID      *string    `gorm:"type:varchar(100)" json:"correlation_id,omitempty"`
	VersionedModel

	// 关联
	Definition *SLADefinition `gorm:"foreignKey:DefinitionID;references:DefinitionID" json:"definition,omitempty"`
	Events     []TrackerEvent `gorm:"foreignKey:TrackerID;references:TrackerID"       json:"events,omitempty"`
}

// TableName 指定表名
func (SLATracker) TableName() string { return "sla_trackers" }

// TrackerEvent 状态流转历史 — 对应 sla_tracker_events（只追加）
type TrackerEvent struct {
	EventID       string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	TrackerID     string        `gorm:"type:uuid;not null"                             json:"tracker_id"`
	FromStatus    TrackerStatus `gorm:"type:varchar(20);not null"                      json:"from_status"`
	ToStatus      TrackerStatus `gorm:"type:varchar(20);not null"                      json:"to_status"`
	Reason        string        `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	CorrelationID *string       `gorm:"type:varchar(100)"                              json:"correlation_id,omitempty"`
	OccurredAt    time.Time     `gorm:"not null"                                       json:"occurred_at"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (TrackerEvent) TableName() string { return "sla_tracker_events" }
