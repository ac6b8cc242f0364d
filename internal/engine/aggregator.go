package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
	"slatrack/backend/pkg/clock"
)

// ── 指标汇总器 ──────────────────────────────────────────────
//
// 周期性将新到达终态的跟踪折算进 (定义, 周期类型, 周期起始) 的
// 合规统计。按 finished_at 水位线增量扫描：每轮处理
// (上次水位, 本轮时刻 − 安全滞后] 内结束的跟踪，处理完把水位线
// 推进到窗口终点，同一跟踪绝不会被统计两次。
//
// 口径：
//   - completed → met；breached → breached；cancelled 单独计数，
//     不参与达标率
//   - compliance_rate = met / (met + breached)
//   - 平均值用增量公式维护：new_avg = old_avg + (x − old_avg) / n，
//     样本只含 completed 与 breached
// ─────────────────────────────────────────────────────────────

// 水位线作业名
const rollupJobName = "metrics_rollup"

// 扫描窗口终点相对当前时刻的回退量：finished_at 已落在窗口内
// 但事务提交晚于扫描的跟踪，留到下一轮而不是被水位线跳过
const rollupSafetyLag = time.Minute

// Aggregator 指标汇总器
type Aggregator struct {
	repo     *repository.Repository
	clk      clock.Clock
	logger   *zap.Logger
	interval time.Duration
}

// NewAggregator 创建 Aggregator 实例
func NewAggregator(repo *repository.Repository, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{repo: repo, clk: clk, interval: interval, logger: logger}
}

// Run 按 metrics_interval 周期执行汇总，直到 ctx 取消
func (a *Aggregator) Run(ctx context.Context) {
	a.logger.Info("指标汇总器启动", zap.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("指标汇总器退出")
			return
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("指标汇总失败", zap.Error(err))
			}
		}
	}
}

// RunOnce 执行一轮增量汇总
func (a *Aggregator) RunOnce(ctx context.Context) error {
	wm, err := a.repo.Metric.GetWatermark(ctx, rollupJobName)
	if err != nil {
		return err
	}
	var since time.Time
	if wm != nil {
		since = wm.LastProcessedAt
	}

	until := a.clk.Now().Add(-rollupSafetyLag)
	if !until.After(since) {
		return nil
	}
	finished, err := a.repo.Tracker.ListFinishedBetween(ctx, since, until)
	if err != nil {
		return err
	}

	for i := range finished {
		if err := a.fold(ctx, &finished[i]); err != nil {
			a.logger.Error("折算跟踪进指标失败",
				zap.String("tracker_id", finished[i].TrackerID),
				zap.Error(err),
			)
			return err
		}
	}

	if err := a.repo.Metric.SetWatermark(ctx, rollupJobName, until); err != nil {
		return err
	}

	if len(finished) > 0 {
		a.logger.Info("指标汇总完成",
			zap.Int("trackers", len(finished)),
			zap.Time("watermark", until),
		)
	}
	return nil
}

// fold 将单个终态跟踪折算进其所属的全部周期统计
func (a *Aggregator) fold(ctx context.Context, tracker *model.SLATracker) error {
	if tracker.FinishedAt == nil {
		return nil
	}
	for _, pt := range model.AllPeriodTypes {
		periodStart := pt.PeriodStart(*tracker.FinishedAt)
		metric, err := a.repo.Metric.Get(ctx, tracker.DefinitionID, pt, periodStart)
		if err != nil {
			// 只有确认行不存在才新建；查询故障直接上抛，
			// 否则已累计的统计会被一行零值覆盖
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			metric = &model.SLAMetric{
				DefinitionID: tracker.DefinitionID,
				PeriodType:   pt,
				PeriodStart:  periodStart,
			}
		}

		applyTracker(metric, tracker)

		if err := a.repo.Metric.Upsert(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

// applyTracker 把一个终态跟踪并入统计
func applyTracker(metric *model.SLAMetric, tracker *model.SLATracker) {
	metric.TrackedCount++
	if tracker.WarningSent {
		metric.WarningCount++
	}

	switch tracker.Status {
	case model.TrackerStatusCompleted:
		metric.MetCount++
	case model.TrackerStatusBreached:
		metric.BreachedCount++
	case model.TrackerStatusCancelled:
		metric.CancelledCount++
		// 取消不参与达标率与平均值
		recalcCompliance(metric)
		return
	}

	recalcCompliance(metric)

	if tracker.ActualMinutes != nil {
		metric.ResolutionSamples++
		metric.AvgResolutionMinutes += (float64(*tracker.ActualMinutes) - metric.AvgResolutionMinutes) / float64(metric.ResolutionSamples)
	}
	metric.PercentageSamples++
	metric.AvgPercentageUsed += (tracker.PercentageUsed - metric.AvgPercentageUsed) / float64(metric.PercentageSamples)
}

func recalcCompliance(metric *model.SLAMetric) {
	denom := metric.MetCount + metric.BreachedCount
	if denom == 0 {
		metric.ComplianceRate = 0
		return
	}
	metric.ComplianceRate = float64(metric.MetCount) / float64(denom)
}
