package repository

import (
	"context"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
)

// DefinitionRepository 承诺定义数据访问接口
type DefinitionRepository interface {
	Create(ctx context.Context, def *model.SLADefinition) error
	GetByID(ctx context.Context, id string) (*model.SLADefinition, error)
	List(ctx context.Context, activeOnly bool) ([]model.SLADefinition, error)
	Update(ctx context.Context, def *model.SLADefinition) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type definitionRepo struct {
	db *gorm.DB
}

// NewDefinitionRepo 创建 DefinitionRepository 实例
func NewDefinitionRepo(db *gorm.DB) DefinitionRepository {
	return &definitionRepo{db: db}
}

func (r *definitionRepo) Create(ctx context.Context, def *model.SLADefinition) error {
	return r.db.WithContext(ctx).Create(def).Error
}

func (r *definitionRepo) GetByID(ctx context.Context, id string) (*model.SLADefinition, error) {
	var def model.SLADefinition
	err := r.db.WithContext(ctx).
		Where("definition_id = ?", id).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// List 列出定义；匹配时按 priority 降序、创建时间升序（先创建者优先作为平手裁决）
func (r *definitionRepo) List(ctx context.Context, activeOnly bool) ([]model.SLADefinition, error) {
	var defs []model.SLADefinition
	q := r.db.WithContext(ctx).Order("priority DESC, created_at ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&defs).Error
	return defs, err
}

func (r *definitionRepo) Update(ctx context.Context, def *model.SLADefinition) error {
	return r.db.WithContext(ctx).Save(def).Error
}

// Delete 软删除定义；既有 Tracker 的快照口径不受影响
func (r *definitionRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.SLADefinition{}).
			Where("definition_id = ?", id).
			Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		return tx.Where("definition_id = ?", id).Delete(&model.SLADefinition{}).Error
	})
}
