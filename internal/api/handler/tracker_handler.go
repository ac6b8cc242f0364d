package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/response"
)

// TrackerHandler 承诺跟踪模块 HTTP 处理器
type TrackerHandler struct {
	trackerSvc service.TrackerService
}

// NewTrackerHandler 创建 TrackerHandler
func NewTrackerHandler(trackerSvc service.TrackerService) *TrackerHandler {
	return &TrackerHandler{trackerSvc: trackerSvc}
}

// StartTracker 启动承诺跟踪
// POST /api/v1/trackers
func (h *TrackerHandler) StartTracker(c *gin.Context) {
	var req dto.StartTrackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	tracker, err := h.trackerSvc.Start(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleTrackerError(c, err)
		return
	}

	response.Created(c, tracker)
}

// ListTrackers 获取承诺跟踪列表
// GET /api/v1/trackers
func (h *TrackerHandler) ListTrackers(c *gin.Context) {
	var req dto.TrackerListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	trackers, total, err := h.trackerSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, trackers, total, req.Page, req.PageSize)
}

// GetTracker 获取承诺跟踪详情
// GET /api/v1/trackers/:id
func (h *TrackerHandler) GetTracker(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "跟踪ID不能为空")
		return
	}

	tracker, err := h.trackerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleTrackerError(c, err)
		return
	}

	response.OK(c, tracker)
}

// ListTrackerEvents 获取状态流转历史
// GET /api/v1/trackers/:id/events
func (h *TrackerHandler) ListTrackerEvents(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "跟踪ID不能为空")
		return
	}

	events, err := h.trackerSvc.ListEvents(c.Request.Context(), id)
	if err != nil {
		h.handleTrackerError(c, err)
		return
	}

	response.OK(c, gin.H{"list": events})
}

// PauseTracker 暂停计时
// POST /api/v1/trackers/:id/pause
func (h *TrackerHandler) PauseTracker(c *gin.Context) {
	h.lifecycle(c, func(callerID string) (*dto.TrackerResponse, error) {
		var req dto.PauseTrackerRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, errBadRequest
		}
		return h.trackerSvc.Pause(c.Request.Context(), c.Param("id"), &req, callerID)
	})
}

// ResumeTracker 恢复计时
// POST /api/v1/trackers/:id/resume
func (h *TrackerHandler) ResumeTracker(c *gin.Context) {
	h.lifecycle(c, func(callerID string) (*dto.TrackerResponse, error) {
		var req dto.ResumeTrackerRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, errBadRequest
		}
		return h.trackerSvc.Resume(c.Request.Context(), c.Param("id"), &req, callerID)
	})
}

// StopTracker 记录完成
// POST /api/v1/trackers/:id/stop
func (h *TrackerHandler) StopTracker(c *gin.Context) {
	h.lifecycle(c, func(callerID string) (*dto.TrackerResponse, error) {
		var req dto.StopTrackerRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, errBadRequest
		}
		return h.trackerSvc.Stop(c.Request.Context(), c.Param("id"), &req, callerID)
	})
}

// CancelTracker 取消跟踪
// POST /api/v1/trackers/:id/cancel
func (h *TrackerHandler) CancelTracker(c *gin.Context) {
	h.lifecycle(c, func(callerID string) (*dto.TrackerResponse, error) {
		var req dto.CancelTrackerRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			return nil, errBadRequest
		}
		return h.trackerSvc.Cancel(c.Request.Context(), c.Param("id"), &req, callerID)
	})
}

// lifecycle 生命周期操作的公共骨架
func (h *TrackerHandler) lifecycle(c *gin.Context, fn func(callerID string) (*dto.TrackerResponse, error)) {
	if c.Param("id") == "" {
		response.BadRequest(c, 10001, "跟踪ID不能为空")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	tracker, err := fn(callerID)
	if err != nil {
		if errors.Is(err, errBadRequest) {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
		h.handleTrackerError(c, err)
		return
	}

	response.OK(c, tracker)
}

// handleTrackerError 统一处理承诺跟踪模块业务错误
func (h *TrackerHandler) handleTrackerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTrackerNotFound):
		response.NotFound(c, 14001, "承诺跟踪不存在")
	case errors.Is(err, service.ErrTrackerInvalidState):
		response.Conflict(c, 14002, "当前状态不允许该操作")
	case errors.Is(err, service.ErrTrackerConflict):
		response.Conflict(c, 14003, "并发冲突，请重试")
	case errors.Is(err, service.ErrTrackerNoSchedule):
		response.BadRequest(c, 14004, "未找到可用的工作时间计划")
	case errors.Is(err, service.ErrNoDefinitionMatched):
		response.BadRequest(c, 14005, "没有匹配该记录的承诺定义")
	case errors.Is(err, service.ErrDefinitionNotFound):
		response.BadRequest(c, 13001, "承诺定义不存在")
	case errors.Is(err, service.ErrDefinitionInactive):
		response.BadRequest(c, 13002, "承诺定义已停用")
	default:
		response.InternalError(c)
	}
}
