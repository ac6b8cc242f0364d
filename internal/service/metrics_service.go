package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
)

// ── 合规指标模块业务错误 ──

var (
	ErrMetricInvalidDate  = errors.New("无效的日期格式，应为 YYYY-MM-DD")
	ErrMetricNoData       = errors.New("查询范围内无指标数据")
	ErrMetricGenerateFail = errors.New("生成 Excel 文件失败")
)

// MetricsService 合规指标查询业务接口
//
// 指标由后台汇总器写入，这里只读：查询与 Excel 导出
type MetricsService interface {
	Query(ctx context.Context, req *dto.MetricListRequest) ([]dto.MetricResponse, error)
	// ExportExcel 导出指标为 Excel，返回文件内容与建议文件名
	ExportExcel(ctx context.Context, req *dto.MetricListRequest) (*bytes.Buffer, string, error)
}

type metricsService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewMetricsService 创建 MetricsService 实例
func NewMetricsService(repo *repository.Repository, logger *zap.Logger) MetricsService {
	return &metricsService{repo: repo, logger: logger}
}

// ────────────────────── Query ──────────────────────

func (s *metricsService) Query(ctx context.Context, req *dto.MetricListRequest) ([]dto.MetricResponse, error) {
	metrics, err := s.query(ctx, req)
	if err != nil {
		return nil, err
	}
	result := make([]dto.MetricResponse, 0, len(metrics))
	for i := range metrics {
		result = append(result, *toMetricResponse(&metrics[i]))
	}
	return result, nil
}

// ────────────────────── ExportExcel ──────────────────────

// ExportExcel 导出指标为 Excel
//
// 单 Sheet 表格：按 period_start 升序，一行一个 (定义, 周期) 统计
func (s *metricsService) ExportExcel(ctx context.Context, req *dto.MetricListRequest) (*bytes.Buffer, string, error) {
	metrics, err := s.query(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if len(metrics) == 0 {
		return nil, "", ErrMetricNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "合规指标"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", ErrMetricGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "C", 12)
	f.SetColWidth(sheetName, "D", "H", 10)
	f.SetColWidth(sheetName, "I", "K", 16)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{
		"定义 ID", "周期类型", "周期起始",
		"总数", "达标", "违约", "告警", "取消",
		"达标率", "平均解决分钟", "平均额度消耗%",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, m := range metrics {
		values := []interface{}{
			m.DefinitionID,
			string(m.PeriodType),
			m.PeriodStart.Format("2006-01-02"),
			m.TrackedCount,
			m.MetCount,
			m.BreachedCount,
			m.WarningCount,
			m.CancelledCount,
			fmt.Sprintf("%.1f%%", m.ComplianceRate*100),
			fmt.Sprintf("%.1f", m.AvgResolutionMinutes),
			fmt.Sprintf("%.1f", m.AvgPercentageUsed),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrMetricGenerateFail
	}

	filename := fmt.Sprintf("sla_metrics_%s.xlsx", time.Now().Format("20060102"))
	return &buf, filename, nil
}

// ── 内部辅助方法 ──

func (s *metricsService) query(ctx context.Context, req *dto.MetricListRequest) ([]model.SLAMetric, error) {
	filter := &repository.MetricFilter{
		DefinitionID: req.DefinitionID,
		PeriodType:   req.PeriodType,
	}
	if req.From != "" {
		from, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return nil, ErrMetricInvalidDate
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return nil, ErrMetricInvalidDate
		}
		filter.To = &to
	}

	metrics, err := s.repo.Metric.Query(ctx, filter)
	if err != nil {
		s.logger.Error("查询合规指标失败", zap.Error(err))
		return nil, err
	}
	return metrics, nil
}

func toMetricResponse(m *model.SLAMetric) *dto.MetricResponse {
	return &dto.MetricResponse{
		ID:                   m.MetricID,
		DefinitionID:         m.DefinitionID,
		PeriodType:           string(m.PeriodType),
		PeriodStart:          m.PeriodStart.Format("2006-01-02"),
		TrackedCount:         m.TrackedCount,
		MetCount:             m.MetCount,
		BreachedCount:        m.BreachedCount,
		WarningCount:         m.WarningCount,
		CancelledCount:       m.CancelledCount,
		ComplianceRate:       m.ComplianceRate,
		AvgResolutionMinutes: m.AvgResolutionMinutes,
		AvgPercentageUsed:    m.AvgPercentageUsed,
	}
}
