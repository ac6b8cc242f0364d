package engine

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"slatrack/backend/internal/model"
	"slatrack/backend/pkg/redis"
)

// ── 动作分发 ──────────────────────────────────────────────
//
// 评估器只负责判定与发布，动作的真正执行（发邮件、调 Webhook、
// 站内通知）由下游消费方完成。分发走 Redis Stream，按
// (tracker_id, 触发类型, action_id) 去重，保证同一动作至多发布一次。
// ─────────────────────────────────────────────────────────────

// ActionTrigger 动作触发类型
type ActionTrigger string

const (
	TriggerWarning ActionTrigger = "warning"
	TriggerBreach  ActionTrigger = "breach"
)

// 分发去重标记的保留时长，覆盖 Tracker 的整个生命周期
const dedupeTTL = 90 * 24 * time.Hour

// ActionRequest 单次动作分发请求
type ActionRequest struct {
	TrackerID    string        `json:"tracker_id"`
	DefinitionID string        `json:"definition_id"`
	RecordType   string        `json:"record_type"`
	RecordID     string        `json:"record_id"`
	Trigger      ActionTrigger `json:"trigger"`
	Action       model.Action  `json:"action"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Dispatcher 动作分发接口
type Dispatcher interface {
	Dispatch(ctx context.Context, req *ActionRequest) error
}

// ────────────────────── Redis Stream 分发器 ──────────────────────

// actionStore 分发所依赖的去重与发布能力，由 pkg/redis 客户端实现
type actionStore interface {
	MarkActionDispatched(ctx context.Context, trackerID, actionID string, ttl time.Duration) (bool, error)
	ClearActionDispatched(ctx context.Context, trackerID, actionID string) error
	PublishAction(ctx context.Context, stream string, values map[string]interface{}) error
}

// StreamDispatcher 将动作请求发布到 Redis Stream
type StreamDispatcher struct {
	store  actionStore
	stream string
	logger *zap.Logger
}

// NewStreamDispatcher 创建 StreamDispatcher 实例
func NewStreamDispatcher(rdb *redis.Client, stream string, logger *zap.Logger) *StreamDispatcher {
	return &StreamDispatcher{store: rdb, stream: stream, logger: logger}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, req *ActionRequest) error {
	payload, err := json.Marshal(req.Action)
	if err != nil {
		return err
	}

	dedupeKey := string(req.Trigger) + ":" + req.Action.ActionID
	first, err := d.store.MarkActionDispatched(ctx, req.TrackerID, dedupeKey, dedupeTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	err = d.store.PublishAction(ctx, d.stream, map[string]interface{}{
		"tracker_id":    req.TrackerID,
		"definition_id": req.DefinitionID,
		"record_type":   req.RecordType,
		"record_id":     req.RecordID,
		"trigger":       string(req.Trigger),
		"kind":          string(req.Action.Kind),
		"action":        string(payload),
		"occurred_at":   req.OccurredAt.Format(time.RFC3339),
	})
	if err != nil {
		// 发布失败必须回滚去重标记，否则标记残留会把这个
		// 从未送达的动作永久抑制掉
		if derr := d.store.ClearActionDispatched(context.WithoutCancel(ctx), req.TrackerID, dedupeKey); derr != nil {
			d.logger.Error("回滚分发去重标记失败",
				zap.String("tracker_id", req.TrackerID),
				zap.String("action_id", req.Action.ActionID),
				zap.Error(derr),
			)
		}
		return err
	}

	d.logger.Info("动作已发布",
		zap.String("tracker_id", req.TrackerID),
		zap.String("trigger", string(req.Trigger)),
		zap.String("kind", string(req.Action.Kind)),
	)
	return nil
}

// ────────────────────── 日志分发器 ──────────────────────

// LogDispatcher Redis 不可用时的降级分发器，只记录日志
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher 创建 LogDispatcher 实例
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, req *ActionRequest) error {
	d.logger.Warn("动作分发降级为日志输出",
		zap.String("tracker_id", req.TrackerID),
		zap.String("trigger", string(req.Trigger)),
		zap.String("kind", string(req.Action.Kind)),
		zap.String("action_id", req.Action.ActionID),
	)
	return nil
}
