package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
)

// ── 承诺定义模块业务错误 ──

var (
	ErrDefinitionNotFound   = errors.New("承诺定义不存在")
	ErrDefinitionInactive   = errors.New("承诺定义已停用")
	ErrDefinitionBadAction  = errors.New("动作配置无效")
	ErrDefinitionNoSchedule = errors.New("启用业务工时的定义必须引用工作时间计划或存在默认计划")
)

// DefinitionService 承诺定义业务接口
type DefinitionService interface {
	Create(ctx context.Context, req *dto.CreateDefinitionRequest, callerID string) (*dto.DefinitionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DefinitionResponse, error)
	List(ctx context.Context, activeOnly bool) ([]dto.DefinitionResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDefinitionRequest, callerID string) (*dto.DefinitionResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	Match(ctx context.Context, req *dto.MatchDefinitionRequest) (*dto.DefinitionResponse, error)
}

type definitionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDefinitionService 创建 DefinitionService 实例
func NewDefinitionService(repo *repository.Repository, logger *zap.Logger) DefinitionService {
	return &definitionService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *definitionService) Create(ctx context.Context, req *dto.CreateDefinitionRequest, callerID string) (*dto.DefinitionResponse, error) {
	for i := range req.WarningActions {
		if err := req.WarningActions[i].Validate(); err != nil {
			return nil, errors.Join(ErrDefinitionBadAction, err)
		}
	}
	for i := range req.BreachActions {
		if err := req.BreachActions[i].Validate(); err != nil {
			return nil, errors.Join(ErrDefinitionBadAction, err)
		}
	}

	useBusinessHours := true
	if req.UseBusinessHours != nil {
		useBusinessHours = *req.UseBusinessHours
	}
	threshold := 75
	if req.WarningThresholdPercent != nil {
		threshold = *req.WarningThresholdPercent
	}

	def := &model.SLADefinition{
		Name:                    req.Name,
		Description:             req.Description,
		TargetMinutes:           req.TargetMinutes,
		UseBusinessHours:        useBusinessHours,
		ScheduleID:              req.ScheduleID,
		CalendarID:              req.CalendarID,
		WarningThresholdPercent: threshold,
		WarningActions:          model.ActionList(req.WarningActions),
		BreachActions:           model.ActionList(req.BreachActions),
		ApplicableConditions:    model.ConditionMap(req.ApplicableConditions),
		Priority:                req.Priority,
		IsActive:                true,
	}
	def.CreatedBy = &callerID
	def.UpdatedBy = &callerID

	if err := s.repo.Definition.Create(ctx, def); err != nil {
		s.logger.Error("创建承诺定义失败", zap.Error(err))
		return nil, err
	}
	return toDefinitionResponse(def), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *definitionService) GetByID(ctx context.Context, id string) (*dto.DefinitionResponse, error) {
	def, err := s.repo.Definition.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		s.logger.Error("查询承诺定义失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toDefinitionResponse(def), nil
}

// ────────────────────── List ──────────────────────

func (s *definitionService) List(ctx context.Context, activeOnly bool) ([]dto.DefinitionResponse, error) {
	defs, err := s.repo.Definition.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("列出承诺定义失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.DefinitionResponse, 0, len(defs))
	for i := range defs {
		result = append(result, *toDefinitionResponse(&defs[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

// Update 编辑定义；计费口径字段只影响其后创建的 Tracker（已快照）
func (s *definitionService) Update(ctx context.Context, id string, req *dto.UpdateDefinitionRequest, callerID string) (*dto.DefinitionResponse, error) {
	def, err := s.repo.Definition.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.Description != nil {
		def.Description = *req.Description
	}
	if req.TargetMinutes != nil {
		def.TargetMinutes = *req.TargetMinutes
	}
	if req.UseBusinessHours != nil {
		def.UseBusinessHours = *req.UseBusinessHours
	}
	if req.ScheduleID != nil {
		def.ScheduleID = req.ScheduleID
	}
	if req.CalendarID != nil {
		def.CalendarID = req.CalendarID
	}
	if req.WarningThresholdPercent != nil {
		def.WarningThresholdPercent = *req.WarningThresholdPercent
	}
	if req.WarningActions != nil {
		for i := range req.WarningActions {
			if err := req.WarningActions[i].Validate(); err != nil {
				return nil, errors.Join(ErrDefinitionBadAction, err)
			}
		}
		def.WarningActions = model.ActionList(req.WarningActions)
	}
	if req.BreachActions != nil {
		for i := range req.BreachActions {
			if err := req.BreachActions[i].Validate(); err != nil {
				return nil, errors.Join(ErrDefinitionBadAction, err)
			}
		}
		def.BreachActions = model.ActionList(req.BreachActions)
	}
	if req.ApplicableConditions != nil {
		def.ApplicableConditions = model.ConditionMap(req.ApplicableConditions)
	}
	if req.Priority != nil {
		def.Priority = *req.Priority
	}
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}
	def.UpdatedBy = &callerID

	if err := s.repo.Definition.Update(ctx, def); err != nil {
		s.logger.Error("更新承诺定义失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toDefinitionResponse(def), nil
}

// ────────────────────── Delete ──────────────────────

func (s *definitionService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.repo.Definition.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDefinitionNotFound
		}
		return err
	}
	if err := s.repo.Definition.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除承诺定义失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Match ──────────────────────

// Match 定义匹配预览：返回 start 时自动匹配会选中的定义
func (s *definitionService) Match(ctx context.Context, req *dto.MatchDefinitionRequest) (*dto.DefinitionResponse, error) {
	defs, err := s.repo.Definition.List(ctx, true)
	if err != nil {
		s.logger.Error("列出承诺定义失败", zap.Error(err))
		return nil, err
	}

	matched := matchDefinition(defs, req.RecordType, req.Attributes)
	if matched == nil {
		return nil, ErrDefinitionNotFound
	}
	return toDefinitionResponse(matched), nil
}

// ── 内部辅助方法 ──

// matchDefinition 在已按 priority DESC, created_at ASC 排序的定义中选择最佳匹配
//
// 平手裁决：优先级最高者胜；同优先级取 applicable_conditions 更具体
// （条件键更多）者；仍平手取创建最早者（由输入顺序保证）
func matchDefinition(defs []model.SLADefinition, recordType string, attrs map[string]string) *model.SLADefinition {
	merged := make(map[string]string, len(attrs)+1)
	merged["record_type"] = recordType
	for k, v := range attrs {
		merged[k] = v
	}

	var best *model.SLADefinition
	bestSpec := -1
	for i := range defs {
		d := &defs[i]
		if best != nil && d.Priority < best.Priority {
			break // 输入有序，后续优先级只会更低
		}
		if !d.ApplicableConditions.Matches(merged) {
			continue
		}
		spec := len(d.ApplicableConditions)
		if best == nil || spec > bestSpec {
			best = d
			bestSpec = spec
		}
	}
	return best
}

func toDefinitionResponse(def *model.SLADefinition) *dto.DefinitionResponse {
	return &dto.DefinitionResponse{
		ID:                      def.DefinitionID,
		Name:                    def.Name,
		Description:             def.Description,
		TargetMinutes:           def.TargetMinutes,
		UseBusinessHours:        def.UseBusinessHours,
		ScheduleID:              def.ScheduleID,
		CalendarID:              def.CalendarID,
		WarningThresholdPercent: def.WarningThresholdPercent,
		WarningActions:          []model.Action(def.WarningActions),
		BreachActions:           []model.Action(def.BreachActions),
		ApplicableConditions:    map[string]string(def.ApplicableConditions),
		Priority:                def.Priority,
		IsActive:                def.IsActive,
		CreatedAt:               def.CreatedAt.Format(time.RFC3339),
		UpdatedAt:               def.UpdatedAt.Format(time.RFC3339),
	}
}
