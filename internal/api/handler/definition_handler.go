package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/response"
)

// DefinitionHandler 承诺定义模块 HTTP 处理器
type DefinitionHandler struct {
	definitionSvc service.DefinitionService
}

// NewDefinitionHandler 创建 DefinitionHandler
func NewDefinitionHandler(definitionSvc service.DefinitionService) *DefinitionHandler {
	return &DefinitionHandler{definitionSvc: definitionSvc}
}

// ListDefinitions 获取承诺定义列表
// GET /api/v1/definitions?active_only=true
func (h *DefinitionHandler) ListDefinitions(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"

	defs, err := h.definitionSvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": defs})
}

// GetDefinition 获取承诺定义详情
// GET /api/v1/definitions/:id
func (h *DefinitionHandler) GetDefinition(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "定义ID不能为空")
		return
	}

	def, err := h.definitionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, def)
}

// CreateDefinition 创建承诺定义
// POST /api/v1/definitions
func (h *DefinitionHandler) CreateDefinition(c *gin.Context) {
	var req dto.CreateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	def, err := h.definitionSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.Created(c, def)
}

// UpdateDefinition 更新承诺定义
// PUT /api/v1/definitions/:id
func (h *DefinitionHandler) UpdateDefinition(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "定义ID不能为空")
		return
	}

	var req dto.UpdateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	def, err := h.definitionSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, def)
}

// DeleteDefinition 删除承诺定义
// DELETE /api/v1/definitions/:id
func (h *DefinitionHandler) DeleteDefinition(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "定义ID不能为空")
		return
	}

	callerID, ok := MustGetServiceName(c)
	if !ok {
		return
	}

	if err := h.definitionSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, nil)
}

// MatchDefinition 定义匹配预览
// POST /api/v1/definitions/match
func (h *DefinitionHandler) MatchDefinition(c *gin.Context) {
	var req dto.MatchDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	def, err := h.definitionSvc.Match(c.Request.Context(), &req)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, def)
}

// handleDefinitionError 统一处理承诺定义模块业务错误
func (h *DefinitionHandler) handleDefinitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDefinitionNotFound):
		response.NotFound(c, 13001, "承诺定义不存在")
	case errors.Is(err, service.ErrDefinitionInactive):
		response.BadRequest(c, 13002, "承诺定义已停用")
	case errors.Is(err, service.ErrDefinitionBadAction):
		response.BadRequest(c, 13003, "动作配置无效")
	case errors.Is(err, service.ErrDefinitionNoSchedule):
		response.BadRequest(c, 13004, "缺少可用的工作时间计划")
	default:
		response.InternalError(c)
	}
}
