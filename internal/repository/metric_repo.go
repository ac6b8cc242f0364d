package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slatrack/backend/internal/model"
)

// MetricFilter 指标查询过滤条件
type MetricFilter struct {
	DefinitionID string
	PeriodType   string
	From         *time.Time
	To           *time.Time
}

// MetricRepository 合规指标数据访问接口
type MetricRepository interface {
	Get(ctx context.Context, definitionID string, periodType model.PeriodType, periodStart time.Time) (*model.SLAMetric, error)
	Upsert(ctx context.Context, metric *model.SLAMetric) error
	Query(ctx context.Context, filter *MetricFilter) ([]model.SLAMetric, error)
	GetWatermark(ctx context.Context, jobName string) (*model.RollupWatermark, error)
	SetWatermark(ctx context.Context, jobName string, processedAt time.Time) error
}

type metricRepo struct {
	db *gorm.DB
}

// NewMetricRepo 创建 MetricRepository 实例
func NewMetricRepo(db *gorm.DB) MetricRepository {
	return &metricRepo{db: db}
}

func (r *metricRepo) Get(ctx context.Context, definitionID string, periodType model.PeriodType, periodStart time.Time) (*model.SLAMetric, error) {
	var metric model.SLAMetric
	err := r.db.WithContext(ctx).
		Where("definition_id = ? AND period_type = ? AND period_start = ?", definitionID, periodType, periodStart).
		First(&metric).Error
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

// Upsert 以 (definition_id, period_type, period_start) 为冲突键覆盖写入
func (r *metricRepo) Upsert(ctx context.Context, metric *model.SLAMetric) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "definition_id"}, {Name: "period_type"}, {Name: "period_start"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"tracked_count", "met_count", "breached_count", "warning_count", "cancelled_count",
				"compliance_rate",
				"avg_resolution_minutes", "resolution_samples",
				"avg_percentage_used", "percentage_samples",
				"updated_at",
			}),
		}).
		Create(metric).Error
}

func (r *metricRepo) Query(ctx context.Context, filter *MetricFilter) ([]model.SLAMetric, error) {
	q := r.db.WithContext(ctx).Model(&model.SLAMetric{})
	if filter.DefinitionID != "" {
		q = q.Where("definition_id = ?", filter.DefinitionID)
	}
	if filter.PeriodType != "" {
		q = q.Where("period_type = ?", filter.PeriodType)
	}
	if filter.From != nil {
		q = q.Where("period_start >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("period_start <= ?", *filter.To)
	}

	var metrics []model.SLAMetric
	err := q.Order("period_start ASC").Find(&metrics).Error
	return metrics, err
}

func (r *metricRepo) GetWatermark(ctx context.Context, jobName string) (*model.RollupWatermark, error) {
	var wm model.RollupWatermark
	err := r.db.WithContext(ctx).
		Where("job_name = ?", jobName).
		First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wm, nil
}

func (r *metricRepo) SetWatermark(ctx context.Context, jobName string, processedAt time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_processed_at", "updated_at"}),
		}).
		Create(&model.RollupWatermark{
			JobName:         jobName,
			LastProcessedAt: processedAt,
			UpdatedAt:       time.Now(),
		}).Error
}
