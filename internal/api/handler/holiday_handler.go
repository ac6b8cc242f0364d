package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/response"
)

// HolidayHandler 节假日日历模块 HTTP 处理器
type HolidayHandler struct {
	holidaySvc service.HolidayService
}

// NewHolidayHandler 创建 HolidayHandler
func NewHolidayHandler(holidaySvc service.HolidayService) *HolidayHandler {
	return &HolidayHandler{holidaySvc: holidaySvc}
}

// ListCalendars 获取节假日日历列表
// GET /api/v1/holiday-calendars
func (h *HolidayHandler) ListCalendars(c *gin.Context) {
	cals, err := h.holidaySvc.ListCalendars(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": cals})
}

// GetCalendar 获取节假日日历详情（含条目）
// GET /api/v1/holiday-calendars/:id
func (h *HolidayHandler) GetCalendar(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "日历ID不能为空")
		return
	}

	cal, err := h.holidaySvc.GetCalendar(c.Request.Context(), id)
	if err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.OK(c, cal)
}

// CreateCalendar 创建节假日日历
// POST /api/v1/holiday-calendars
func (h *HolidayHandler) CreateCalendar(c *gin.Context) {
	var req dto.CreateHolidayCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	cal, err := h.holidaySvc.CreateCalendar(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.Created(c, cal)
}

// UpdateCalendar 更新节假日日历
// PUT /api/v1/holiday-calendars/:id
func (h *HolidayHandler) UpdateCalendar(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "日历ID不能为空")
		return
	}

	var req dto.UpdateHolidayCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	cal, err := h.holidaySvc.UpdateCalendar(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.OK(c, cal)
}

// DeleteCalendar 删除节假日日历
// DELETE /api/v1/holiday-calendars/:id
func (h *HolidayHandler) DeleteCalendar(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "日历ID不能为空")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	if err := h.holidaySvc.DeleteCalendar(c.Request.Context(), id, callerID); err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.OK(c, nil)
}

// AddHoliday 添加节假日条目
// POST /api/v1/holiday-calendars/:id/holidays
func (h *HolidayHandler) AddHoliday(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "日历ID不能为空")
		return
	}

	var req dto.CreateHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	holiday, err := h.holidaySvc.AddHoliday(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.Created(c, holiday)
}

// DeleteHoliday 删除节假日条目
// DELETE /api/v1/holiday-calendars/:id/holidays/:holiday_id
func (h *HolidayHandler) DeleteHoliday(c *gin.Context) {
	id := c.Param("id")
	holidayID := c.Param("holiday_id")
	if id == "" || holidayID == "" {
		response.BadRequest(c, 10001, "参数不能为空")
		return
	}

	if err := h.holidaySvc.DeleteHoliday(c.Request.Context(), id, holidayID); err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.OK(c, nil)
}

// ImportICS 从 iCalendar 导入节假日
// POST /api/v1/holiday-calendars/:id/import
func (h *HolidayHandler) ImportICS(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "日历ID不能为空")
		return
	}

	var req dto.ImportICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	result, err := h.holidaySvc.ImportICS(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleHolidayError(c, err)
		return
	}

	response.OK(c, result)
}

// handleHolidayError 统一处理节假日日历模块业务错误
func (h *HolidayHandler) handleHolidayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHolidayCalendarNotFound):
		response.NotFound(c, 12001, "节假日日历不存在")
	case errors.Is(err, service.ErrHolidayNotFound):
		response.NotFound(c, 12002, "节假日条目不存在")
	case errors.Is(err, service.ErrHolidayInvalidDate):
		response.BadRequest(c, 12003, "无效的日期格式")
	case errors.Is(err, service.ErrHolidayInvalidRange):
		response.BadRequest(c, 12004, "结束日期不能早于开始日期")
	case errors.Is(err, service.ErrICSEmptyRequest):
		response.BadRequest(c, 12005, "url 与 content 必须提供其一")
	default:
		response.InternalError(c)
	}
}
