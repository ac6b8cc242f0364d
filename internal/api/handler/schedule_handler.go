package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/response"
)

// ScheduleHandler 工作时间计划模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// ListSchedules 获取工作时间计划列表
// GET /api/v1/schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.scheduleSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": schedules})
}

// GetSchedule 获取工作时间计划详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "计划ID不能为空")
		return
	}

	schedule, err := h.scheduleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// CreateSchedule 创建工作时间计划
// POST /api/v1/schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, schedule)
}

// UpdateSchedule 更新工作时间计划
// PUT /api/v1/schedules/:id
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "计划ID不能为空")
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// DeleteSchedule 删除工作时间计划
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "计划ID不能为空")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	if err := h.scheduleSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleScheduleError 统一处理工作时间计划模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 11001, "工作时间计划不存在")
	case errors.Is(err, service.ErrScheduleInvalidWindow):
		response.BadRequest(c, 11002, "工作窗口无效")
	case errors.Is(err, service.ErrScheduleInvalidTZ):
		response.BadRequest(c, 11003, "无效的时区标识")
	case errors.Is(err, service.ErrScheduleDuplicateDay):
		response.BadRequest(c, 11004, "同一星期几的窗口配置重复")
	default:
		response.InternalError(c)
	}
}
