package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/response"
)

// MetricsHandler 合规指标模块 HTTP 处理器
type MetricsHandler struct {
	metricsSvc service.MetricsService
}

// NewMetricsHandler 创建 MetricsHandler
func NewMetricsHandler(metricsSvc service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsSvc: metricsSvc}
}

// ListMetrics 查询合规指标
// GET /api/v1/metrics
func (h *MetricsHandler) ListMetrics(c *gin.Context) {
	var req dto.MetricListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	metrics, err := h.metricsSvc.Query(c.Request.Context(), &req)
	if err != nil {
		h.handleMetricsError(c, err)
		return
	}

	response.OK(c, gin.H{"list": metrics})
}

// ExportMetrics 导出合规指标为 Excel
// GET /api/v1/metrics/export
func (h *MetricsHandler) ExportMetrics(c *gin.Context) {
	var req dto.MetricListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.metricsSvc.ExportExcel(c.Request.Context(), &req)
	if err != nil {
		h.handleMetricsError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// handleMetricsError 统一处理合规指标模块业务错误
func (h *MetricsHandler) handleMetricsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMetricInvalidDate):
		response.BadRequest(c, 15001, "无效的日期格式")
	case errors.Is(err, service.ErrMetricNoData):
		response.NotFound(c, 15002, "查询范围内无指标数据")
	case errors.Is(err, service.ErrMetricGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
