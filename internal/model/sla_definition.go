package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ── 动作配置（带类型的变体，JSONB 存储） ──
//
// 动态 JSON 形态的动作配置在边界处解码为带标签的变体类型，
// 引擎内部不传递无类型的 blob

// ActionKind 动作类型
type ActionKind string

const (
	ActionKindEmail   ActionKind = "email"
	ActionKindWebhook ActionKind = "webhook"
	ActionKindInApp   ActionKind = "in_app"
)

// EmailActionPayload 邮件动作参数
type EmailActionPayload struct {
	To       []string `json:"to"`
	Template string   `json:"template"`
}

// WebhookActionPayload Webhook 动作参数
type WebhookActionPayload struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

// InAppActionPayload 站内通知动作参数
type InAppActionPayload struct {
	UserIDs  []string `json:"user_ids"`
	Template string   `json:"template"`
}

// Action 单个告警/违约动作
// Kind 决定哪个 payload 字段有效，其余必须为 nil
type Action struct {
	ActionID string                `json:"action_id"`
	Kind     ActionKind            `json:"kind"`
	Email    *EmailActionPayload   `json:"email,omitempty"`
	Webhook  *WebhookActionPayload `json:"webhook,omitempty"`
	InApp    *InAppActionPayload   `json:"in_app,omitempty"`
}

// Validate 校验动作类型与 payload 匹配
func (a *Action) Validate() error {
	if a.ActionID == "" {
		return fmt.Errorf("动作缺少 action_id")
	}
	switch a.Kind {
	case ActionKindEmail:
		if a.Email == nil || len(a.Email.To) == 0 {
			return fmt.Errorf("动作 %s: email 参数缺失", a.ActionID)
		}
	case ActionKindWebhook:
		if a.Webhook == nil || a.Webhook.URL == "" {
			return fmt.Errorf("动作 %s: webhook 参数缺失", a.ActionID)
		}
	case ActionKindInApp:
		if a.InApp == nil || len(a.InApp.UserIDs) == 0 {
			return fmt.Errorf("动作 %s: in_app 参数缺失", a.ActionID)
		}
	default:
		return fmt.Errorf("动作 %s: 未知类型 %q", a.ActionID, a.Kind)
	}
	return nil
}

// ActionList 有序动作列表，对应 PostgreSQL JSONB 列
type ActionList []Action

// Scan 实现 GORM Scanner 接口
func (l *ActionList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("ActionList.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(data, l)
}

// Value 实现 GORM Valuer 接口
func (l ActionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// ConditionMap 适用条件（键值等值匹配），对应 PostgreSQL JSONB 列
// 条件由外部记录生命周期声明式求值；这里只承载配置与特异性比较
type ConditionMap map[string]string

// Scan 实现 GORM Scanner 接口
func (m *ConditionMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("ConditionMap.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(data, m)
}

// Value 实现 GORM Valuer 接口
func (m ConditionMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Matches 判断记录属性是否满足全部条件（等值匹配）
func (m ConditionMap) Matches(attrs map[string]string) bool {
	for k, v := range m {
		if attrs[k] != v {
			return false
		}
	}
	return true
}

// SLADefinition 承诺定义模板 — 对应 sla_definitions
//
// 计费口径对 Tracker 不可变：Tracker 创建时快照目标时长、阈值等字段，
// 定义的后续编辑只影响其后创建的 Tracker
type SLADefinition struct {
	DefinitionID            string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"definition_id"`
	Name                    string       `gorm:"type:varchar(100);not null"                     json:"name"`
	Description             string       `gorm:"type:varchar(500)"                              json:"description,omitempty"`
	TargetMinutes           int          `gorm:"not null"                                       json:"target_minutes"`
	UseBusinessHours        bool         `gorm:"not null;default:true"                          json:"use_business_hours"`
	ScheduleID              *string      `gorm:"type:uuid"                                      json:"schedule_id,omitempty"`
	CalendarID              *string      `gorm:"type:uuid"                                      json:"calendar_id,omitempty"`
	WarningThresholdPercent int          `gorm:"not null;default:75"                            json:"warning_threshold_percent"`
	WarningActions          ActionList   `gorm:"type:jsonb;not null;default:'[]'"               json:"warning_actions"`
	BreachActions           ActionList   `gorm:"type:jsonb;not null;default:'[]'"               json:"breach_actions"`
	ApplicableConditions    ConditionMap `gorm:"type:jsonb;not null;default:'{}'"               json:"applicable_conditions"`
	Priority                int          `gorm:"not null;default:0"                             json:"priority"`
	IsActive                bool         `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	Schedule *BusinessSchedule `gorm:"foreignKey:ScheduleID;references:ScheduleID"  json:"schedule,omitempty"`
	Calendar *HolidayCalendar  `gorm:"foreignKey:CalendarID;references:CalendarID" json:"calendar,omitempty"`
}

// TableName 指定表名
func (SLADefinition) TableName() string { return "sla_definitions" }
