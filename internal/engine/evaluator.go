package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/config"
	"slatrack/backend/internal/calendar"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
	"slatrack/backend/pkg/clock"
	pkgerrors "slatrack/backend/pkg/errors"
	"slatrack/backend/pkg/redis"
)

// ── Tick 评估器 ──────────────────────────────────────────────
//
// 周期扫描全部 active 跟踪，判定告警与违约：
//   - now >= warning_at 且未告警 → 标记 warning_sent，分发告警动作
//   - now >= target_at           → 置为 breached 终态，分发违约动作
//
// 并发约束：
//   - Redis 可用时每个 tick 先抢单实例锁，多副本部署下同一时刻
//     只有一个评估器在扫描
//   - 单实例内按 tracker_id 哈希切分给固定数量 worker，同一跟踪
//     始终落在同一 worker，tick 内不会被并发评估
//   - 写入走乐观锁 CAS 并携带期望状态，外部取消永远赢过在途评估
//   - 单个跟踪评估失败只记日志，不影响同批其他跟踪
// ─────────────────────────────────────────────────────────────

// Evaluator Tick 评估器
type Evaluator struct {
	repo       *repository.Repository
	rdb        *redis.Client // 可为 nil（单实例部署、Redis 降级）
	dispatcher Dispatcher
	clk        clock.Clock
	logger     *zap.Logger
	cfg        config.EngineConfig
	instanceID string
}

// NewEvaluator 创建 Evaluator 实例
func NewEvaluator(
	repo *repository.Repository,
	rdb *redis.Client,
	dispatcher Dispatcher,
	clk clock.Clock,
	cfg config.EngineConfig,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		repo:       repo,
		rdb:        rdb,
		dispatcher: dispatcher,
		clk:        clk,
		logger:     logger,
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}
}

// Run 按 tick_interval 周期执行评估，直到 ctx 取消
func (e *Evaluator) Run(ctx context.Context) {
	e.logger.Info("评估器启动",
		zap.Duration("tick_interval", e.cfg.TickInterval),
		zap.Int("workers", e.cfg.Workers),
	)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("评估器退出")
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.logger.Error("tick 评估失败", zap.Error(err))
			}
		}
	}
}

// RunOnce 执行一轮评估
func (e *Evaluator) RunOnce(ctx context.Context) error {
	if e.rdb != nil {
		acquired, err := e.rdb.AcquireEvaluatorLock(ctx, e.instanceID, e.cfg.EvaluatorLockTTL)
		if err != nil {
			return err
		}
		if !acquired {
			e.logger.Debug("评估锁被其他实例持有，跳过本轮")
			return nil
		}
		defer func() {
			if err := e.rdb.ReleaseEvaluatorLock(context.WithoutCancel(ctx), e.instanceID); err != nil {
				e.logger.Warn("释放评估锁失败", zap.Error(err))
			}
		}()
	}

	trackers, err := e.repo.Tracker.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(trackers) == 0 {
		return nil
	}

	now := e.clk.Now()
	res := newRunResolver(e.repo)

	// 按 tracker_id 哈希分片：同一跟踪固定落在同一 worker
	shards := make([][]*model.SLATracker, e.cfg.Workers)
	for i := range trackers {
		t := &trackers[i]
		idx := shardOf(t.TrackerID, e.cfg.Workers)
		shards[idx] = append(shards[idx], t)
	}

	var wg sync.WaitGroup
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []*model.SLATracker) {
			defer wg.Done()
			for _, t := range shard {
				if err := e.evaluate(ctx, t, now, res); err != nil {
					e.logger.Error("评估跟踪失败",
						zap.String("tracker_id", t.TrackerID),
						zap.Error(err),
					)
				}
			}
		}(shard)
	}
	wg.Wait()
	return nil
}

func shardOf(trackerID string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(trackerID))
	return int(h.Sum32() % uint32(workers))
}

// evaluate 评估单个 active 跟踪
func (e *Evaluator) evaluate(ctx context.Context, tracker *model.SLATracker, now time.Time, res *runResolver) error {
	if !now.Before(tracker.TargetAt) {
		return e.breach(ctx, tracker, now, res)
	}
	if !tracker.WarningSent && !now.Before(tracker.WarningAt) {
		return e.warn(ctx, tracker, now, res)
	}
	return nil
}

// breach 置为违约终态并分发违约动作
func (e *Evaluator) breach(ctx context.Context, tracker *model.SLATracker, now time.Time, res *runResolver) error {
	acct, err := res.accounting(ctx, tracker)
	if err != nil {
		return err
	}

	progress := tracker.ConsumedMinutes + acct.Elapsed(tracker.SegmentStartedAt, now)
	tracker.ConsumedMinutes = progress
	// actual_minutes 按自然时长结算：now − started_at − total_paused_minutes
	actual := int(now.Sub(tracker.StartedAt).Minutes()) - tracker.TotalPausedMinutes
	if actual < 0 {
		actual = 0
	}
	tracker.ActualMinutes = &actual
	if tracker.TargetMinutes > 0 {
		tracker.PercentageUsed = float64(progress) / float64(tracker.TargetMinutes) * 100
	}
	tracker.Status = model.TrackerStatusBreached
	tracker.Breached = true
	tracker.BreachedAt = &now
	tracker.FinishedAt = &now
	if !tracker.WarningSent {
		// 越过告警阈值直接违约时不再单独告警
		tracker.WarningSent = true
		tracker.WarningSentAt = &now
	}

	if err := e.repo.Tracker.UpdateCAS(ctx, tracker, model.TrackerStatusActive); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			// 外部操作（完成/取消/暂停）赢过本次评估，放弃
			e.logger.Debug("违约判定被并发操作抢先，跳过", zap.String("tracker_id", tracker.TrackerID))
			return nil
		}
		return err
	}

	e.appendEvent(ctx, tracker.TrackerID, model.TrackerStatusActive, model.TrackerStatusBreached, "超出目标时限", now)

	e.logger.Warn("承诺违约",
		zap.String("tracker_id", tracker.TrackerID),
		zap.String("record_id", tracker.RecordID),
		zap.Int("consumed_minutes", progress),
		zap.Int("target_minutes", tracker.TargetMinutes),
	)

	def, err := res.definition(ctx, tracker.DefinitionID)
	if err != nil {
		return err
	}
	e.dispatchActions(ctx, tracker, def.BreachActions, TriggerBreach, now)
	return nil
}

// warn 标记已告警并分发告警动作，状态保持 active
func (e *Evaluator) warn(ctx context.Context, tracker *model.SLATracker, now time.Time, res *runResolver) error {
	acct, err := res.accounting(ctx, tracker)
	if err != nil {
		return err
	}

	progress := tracker.ConsumedMinutes + acct.Elapsed(tracker.SegmentStartedAt, now)
	if tracker.TargetMinutes > 0 {
		tracker.PercentageUsed = float64(progress) / float64(tracker.TargetMinutes) * 100
	}
	tracker.WarningSent = true
	tracker.WarningSentAt = &now

	if err := e.repo.Tracker.UpdateCAS(ctx, tracker, model.TrackerStatusActive); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			e.logger.Debug("告警标记被并发操作抢先，跳过", zap.String("tracker_id", tracker.TrackerID))
			return nil
		}
		return err
	}

	e.logger.Info("承诺告警",
		zap.String("tracker_id", tracker.TrackerID),
		zap.String("record_id", tracker.RecordID),
		zap.Float64("percentage_used", tracker.PercentageUsed),
	)

	def, err := res.definition(ctx, tracker.DefinitionID)
	if err != nil {
		return err
	}
	e.dispatchActions(ctx, tracker, def.WarningActions, TriggerWarning, now)
	return nil
}

// dispatchActions 逐个分发动作；失败只记日志，去重由分发器保证
func (e *Evaluator) dispatchActions(ctx context.Context, tracker *model.SLATracker, actions model.ActionList, trigger ActionTrigger, now time.Time) {
	for _, action := range actions {
		req := &ActionRequest{
			TrackerID:    tracker.TrackerID,
			DefinitionID: tracker.DefinitionID,
			RecordType:   tracker.RecordType,
			RecordID:     tracker.RecordID,
			Trigger:      trigger,
			Action:       action,
			OccurredAt:   now,
		}
		if err := e.dispatcher.Dispatch(ctx, req); err != nil {
			e.logger.Error("分发动作失败",
				zap.String("tracker_id", tracker.TrackerID),
				zap.String("action_id", action.ActionID),
				zap.String("trigger", string(trigger)),
				zap.Error(err),
			)
		}
	}
}

func (e *Evaluator) appendEvent(ctx context.Context, trackerID string, from, to model.TrackerStatus, reason string, occurredAt time.Time) {
	event := &model.TrackerEvent{
		TrackerID:  trackerID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		OccurredAt: occurredAt,
	}
	if err := e.repo.Tracker.AppendEvent(ctx, event); err != nil {
		e.logger.Error("写入状态流转历史失败", zap.String("tracker_id", trackerID), zap.Error(err))
	}
}

// ────────────────────── 单轮缓存 ──────────────────────

// runResolver 一轮评估内的定义与计时口径缓存
// 只在单轮内复用，轮间重新加载以感知计划/日历的编辑
type runResolver struct {
	repo *repository.Repository

	mu    sync.Mutex
	defs  map[string]*model.SLADefinition
	accts map[string]*calendar.Accounting
}

func newRunResolver(repo *repository.Repository) *runResolver {
	return &runResolver{
		repo:  repo,
		defs:  make(map[string]*model.SLADefinition),
		accts: make(map[string]*calendar.Accounting),
	}
}

func (r *runResolver) definition(ctx context.Context, id string) (*model.SLADefinition, error) {
	r.mu.Lock()
	def, ok := r.defs[id]
	r.mu.Unlock()
	if ok {
		return def, nil
	}

	def, err := r.repo.Definition.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.defs[id] = def
	r.mu.Unlock()
	return def, nil
}

// accounting 解析跟踪快照的计时口径，按 (schedule, calendar) 组合缓存
func (r *runResolver) accounting(ctx context.Context, tracker *model.SLATracker) (*calendar.Accounting, error) {
	if !tracker.UseBusinessHours {
		return calendar.NaturalTime(), nil
	}

	key := ""
	if tracker.ScheduleID != nil {
		key = *tracker.ScheduleID
	}
	if tracker.CalendarID != nil {
		key += "|" + *tracker.CalendarID
	}

	r.mu.Lock()
	acct, ok := r.accts[key]
	r.mu.Unlock()
	if ok {
		return acct, nil
	}

	var (
		schedule *model.BusinessSchedule
		err      error
	)
	if tracker.ScheduleID != nil {
		schedule, err = r.repo.Schedule.GetByID(ctx, *tracker.ScheduleID)
	} else {
		schedule, err = r.repo.Schedule.GetDefault(ctx)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("未找到可用的工作时间计划")
		}
		return nil, err
	}

	cs, err := schedule.ToCalendarSchedule()
	if err != nil {
		return nil, err
	}
	acct = &calendar.Accounting{Schedule: cs}

	if tracker.CalendarID != nil {
		cal, err := r.repo.Holiday.GetCalendarByID(ctx, *tracker.CalendarID)
		if err != nil {
			return nil, err
		}
		acct.Holidays = cal.ToHolidaySet()
	}

	r.mu.Lock()
	r.accts[key] = acct
	r.mu.Unlock()
	return acct, nil
}
