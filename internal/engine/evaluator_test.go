package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"slatrack/backend/config"
	"slatrack/backend/internal/model"
	"slatrack/backend/pkg/clock"
	pkgerrors "slatrack/backend/pkg/errors"
)

func newTestEvaluator(repos *testRepos, disp Dispatcher, clk clock.Clock) *Evaluator {
	cfg := config.EngineConfig{
		TickInterval:     time.Minute,
		Workers:          4,
		EvaluatorLockTTL: 30 * time.Second,
	}
	return NewEvaluator(repos.toRepository(), nil, disp, clk, cfg, zap.NewNop())
}

// seedEngineDefinition 带告警/违约动作的 240 分钟自然时间定义
func seedEngineDefinition(repos *testRepos, id string) *model.SLADefinition {
	def := &model.SLADefinition{
		DefinitionID:            id,
		Name:                    "定义 " + id,
		TargetMinutes:           240,
		UseBusinessHours:        false,
		WarningThresholdPercent: 75,
		WarningActions: model.ActionList{
			{ActionID: "warn-hook", Kind: model.ActionKindWebhook, Webhook: &model.WebhookActionPayload{URL: "https://example.com/warn"}},
		},
		BreachActions: model.ActionList{
			{ActionID: "breach-hook", Kind: model.ActionKindWebhook, Webhook: &model.WebhookActionPayload{URL: "https://example.com/breach"}},
			{ActionID: "breach-mail", Kind: model.ActionKindEmail, Email: &model.EmailActionPayload{To: []string{"oncall@example.com"}, Template: "breach"}},
		},
		IsActive: true,
	}
	repos.definition.defs[id] = def
	return def
}

// seedActiveTracker 自然时间计费的 active 跟踪
func seedActiveTracker(repos *testRepos, id, definitionID string, started, warningAt, targetAt time.Time, targetMinutes int) *model.SLATracker {
	tracker := &model.SLATracker{
		TrackerID:               id,
		DefinitionID:            definitionID,
		RecordType:              "ticket",
		RecordID:                "T-" + id,
		Status:                  model.TrackerStatusActive,
		TargetMinutes:           targetMinutes,
		UseBusinessHours:        false,
		WarningThresholdPercent: 75,
		StartedAt:               started,
		TargetAt:                targetAt,
		WarningAt:               warningAt,
		SegmentStartedAt:        started,
	}
	repos.tracker.trackers[id] = tracker
	return tracker
}

var noonMonday = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestEvaluator_Warning(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-2*time.Hour), // 10:00 启动
		noonMonday.Add(-time.Hour),   // 11:00 告警线（已越过）
		noonMonday.Add(2*time.Hour),  // 14:00 截止（未到）
		240,
	)

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce 失败: %v", err)
	}

	stored := repos.tracker.trackers["trk-1"]
	if !stored.WarningSent || stored.WarningSentAt == nil {
		t.Errorf("应标记已告警")
	}
	if stored.Status != model.TrackerStatusActive {
		t.Errorf("告警后状态应保持 active，得到 %s", stored.Status)
	}
	// 已消耗 120 / 240 分钟
	if stored.PercentageUsed != 50 {
		t.Errorf("期望 percentage_used 50，得到 %.1f", stored.PercentageUsed)
	}

	reqs := disp.all()
	if len(reqs) != 1 {
		t.Fatalf("期望分发 1 个告警动作，得到 %d", len(reqs))
	}
	if reqs[0].Trigger != TriggerWarning || reqs[0].Action.ActionID != "warn-hook" {
		t.Errorf("分发内容不符: %+v", reqs[0])
	}

	// 告警不是状态流转，不写事件
	if len(repos.tracker.events) != 0 {
		t.Errorf("告警不应写状态流转历史，得到 %d 条", len(repos.tracker.events))
	}
}

// 已告警的跟踪不重复告警
func TestEvaluator_WarningOnlyOnce(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-2*time.Hour),
		noonMonday.Add(-time.Hour),
		noonMonday.Add(2*time.Hour),
		240,
	)

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))
	ctx := context.Background()

	if err := ev.RunOnce(ctx); err != nil {
		t.Fatalf("第一轮失败: %v", err)
	}
	if err := ev.RunOnce(ctx); err != nil {
		t.Fatalf("第二轮失败: %v", err)
	}

	if got := len(disp.all()); got != 1 {
		t.Errorf("两轮评估应只分发一次告警，得到 %d", got)
	}
}

func TestEvaluator_Breach(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-2*time.Hour), // 10:00 启动
		noonMonday.Add(-30*time.Minute),
		noonMonday, // 截止恰为当前时刻
		120,
	)

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce 失败: %v", err)
	}

	stored := repos.tracker.trackers["trk-1"]
	if stored.Status != model.TrackerStatusBreached || !stored.Breached {
		t.Errorf("期望状态 breached，得到 %s", stored.Status)
	}
	if stored.BreachedAt == nil || stored.FinishedAt == nil {
		t.Errorf("违约后 breached_at / finished_at 应有值")
	}
	if stored.ActualMinutes == nil || *stored.ActualMinutes != 120 {
		t.Errorf("期望实际用时 120 分钟，得到 %v", stored.ActualMinutes)
	}
	if stored.PercentageUsed != 100 {
		t.Errorf("期望 percentage_used 100，得到 %.1f", stored.PercentageUsed)
	}

	reqs := disp.all()
	if len(reqs) != 2 {
		t.Fatalf("期望分发 2 个违约动作，得到 %d", len(reqs))
	}
	for _, r := range reqs {
		if r.Trigger != TriggerBreach {
			t.Errorf("期望 breach 触发，得到 %s", r.Trigger)
		}
	}

	events, _ := repos.tracker.ListEvents(context.Background(), "trk-1")
	if len(events) != 1 {
		t.Fatalf("违约应写 1 条状态流转历史，得到 %d", len(events))
	}
	if events[0].FromStatus != model.TrackerStatusActive || events[0].ToStatus != model.TrackerStatusBreached {
		t.Errorf("事件应为 active→breached，得到 %s→%s", events[0].FromStatus, events[0].ToStatus)
	}
}

// 越过告警线直接违约：不单独告警，但标记 warning_sent 供统计
func TestEvaluator_BreachSkippingWarning(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-3*time.Hour),
		noonMonday.Add(-time.Hour),
		noonMonday.Add(-30*time.Minute),
		120,
	)

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce 失败: %v", err)
	}

	stored := repos.tracker.trackers["trk-1"]
	if stored.Status != model.TrackerStatusBreached {
		t.Errorf("期望状态 breached，得到 %s", stored.Status)
	}
	if !stored.WarningSent {
		t.Errorf("直接违约也应标记 warning_sent")
	}
	for _, r := range disp.all() {
		if r.Trigger == TriggerWarning {
			t.Errorf("直接违约不应再分发告警动作")
		}
	}
}

// 外部操作（完成/取消）赢过在途评估：CAS 冲突时静默放弃
func TestEvaluator_ConcurrentCancelWins(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-3*time.Hour),
		noonMonday.Add(-time.Hour),
		noonMonday.Add(-30*time.Minute),
		120,
	)
	repos.tracker.casErr = pkgerrors.ErrOptimisticLock

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("CAS 冲突应静默跳过，得到: %v", err)
	}

	if got := len(disp.all()); got != 0 {
		t.Errorf("评估被抢先时不应分发动作，得到 %d", got)
	}
	if len(repos.tracker.events) != 0 {
		t.Errorf("评估被抢先时不应写事件，得到 %d 条", len(repos.tracker.events))
	}
}

// 业务工时计费下的违约结算：进度只算工作窗口内的分钟，实际用时按自然时长
func TestEvaluator_BreachBusinessHours(t *testing.T) {
	repos := newTestRepos()

	schedule := &model.BusinessSchedule{
		ScheduleID: "sched-weekday",
		Name:       "标准工作周",
		Timezone:   "UTC",
	}
	for dow := 1; dow <= 5; dow++ {
		schedule.Days = append(schedule.Days, model.BusinessScheduleDay{
			ScheduleID: schedule.ScheduleID,
			DayOfWeek:  dow,
			Enabled:    true,
			StartTime:  "09:00",
			EndTime:    "17:00",
		})
	}
	repos.schedule.schedules[schedule.ScheduleID] = schedule

	seedEngineDefinition(repos, "def-1")

	// 周五 16:00 启动，目标 90 业务分钟 → 截止周一 09:30
	started := time.Date(2025, 3, 7, 16, 0, 0, 0, time.UTC)
	schedID := schedule.ScheduleID
	tracker := &model.SLATracker{
		TrackerID:               "trk-1",
		DefinitionID:            "def-1",
		RecordType:              "ticket",
		RecordID:                "T-trk-1",
		Status:                  model.TrackerStatusActive,
		TargetMinutes:           90,
		UseBusinessHours:        true,
		ScheduleID:              &schedID,
		WarningThresholdPercent: 75,
		StartedAt:               started,
		TargetAt:                time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
		WarningAt:               time.Date(2025, 3, 10, 9, 7, 0, 0, time.UTC),
		SegmentStartedAt:        started,
	}
	repos.tracker.trackers["trk-1"] = tracker

	// 周一 10:00 评估：已越过周一 09:30 的截止
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(now))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce 失败: %v", err)
	}

	stored := repos.tracker.trackers["trk-1"]
	if stored.Status != model.TrackerStatusBreached {
		t.Fatalf("期望状态 breached，得到 %s", stored.Status)
	}
	// 周五 60 分钟 + 周一 60 分钟 = 120 业务分钟
	if stored.ConsumedMinutes != 120 {
		t.Errorf("期望消耗 120 业务分钟，得到 %d", stored.ConsumedMinutes)
	}
	// 周五 16:00 → 周一 10:00 = 66 小时自然时长
	if stored.ActualMinutes == nil || *stored.ActualMinutes != 3960 {
		t.Errorf("期望实际用时 3960 自然分钟，得到 %v", stored.ActualMinutes)
	}
}

// 未到告警线的跟踪不受影响
func TestEvaluator_NoActionBeforeWarning(t *testing.T) {
	repos := newTestRepos()
	seedEngineDefinition(repos, "def-1")
	seedActiveTracker(repos, "trk-1", "def-1",
		noonMonday.Add(-time.Hour),
		noonMonday.Add(2*time.Hour),
		noonMonday.Add(3*time.Hour),
		240,
	)

	disp := &recordingDispatcher{}
	ev := newTestEvaluator(repos, disp, clock.NewFixed(noonMonday))

	if err := ev.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce 失败: %v", err)
	}

	stored := repos.tracker.trackers["trk-1"]
	if stored.WarningSent || stored.Status != model.TrackerStatusActive || stored.Version != 0 {
		t.Errorf("未到告警线不应有任何写入: %+v", stored)
	}
	if got := len(disp.all()); got != 0 {
		t.Errorf("不应分发动作，得到 %d", got)
	}
}
