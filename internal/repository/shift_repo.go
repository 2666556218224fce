package repository

import (
	"context"

	"gorm.io/gorm"

	"care-hub/backend/internal/model"
)

// ShiftTemplateRepository 班次模板数据访问接口
type ShiftTemplateRepository interface {
	Create(ctx context.Context, tpl *model.ShiftTemplate) error
	GetByID(ctx context.Context, id string) (*model.ShiftTemplate, error)
	ListActiveByCarer(ctx context.Context, carerID string) ([]model.ShiftTemplate, error)
	Deactivate(ctx context.Context, id string) error
}

// ShiftInstanceRepository 班次实例数据访问接口
type ShiftInstanceRepository interface {
	Create(ctx context.Context, inst *model.ShiftInstance) error
	GetByID(ctx context.Context, id string) (*model.ShiftInstance, error)
	// FindScheduledByCarerAndDate 查找护工在某日的有效实例（模板需处于启用状态）
	FindScheduledByCarerAndDate(ctx context.Context, carerID, date string) (*model.ShiftInstance, error)
}

// ── ShiftTemplate Repository 实现 ──

type shiftTemplateRepo struct {
	db *gorm.DB
}

func NewShiftTemplateRepo(db *gorm.DB) ShiftTemplateRepository {
	return &shiftTemplateRepo{db: db}
}

func (r *shiftTemplateRepo) Create(ctx context.Context, tpl *model.ShiftTemplate) error {
	if tpl.TemplateID == "" {
		tpl.TemplateID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *shiftTemplateRepo) GetByID(ctx context.Context, id string) (*model.ShiftTemplate, error) {
	var tpl model.ShiftTemplate
	err := r.db.WithContext(ctx).
		Where("template_id = ?", id).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *shiftTemplateRepo) ListActiveByCarer(ctx context.Context, carerID string) ([]model.ShiftTemplate, error) {
	var tpls []model.ShiftTemplate
	err := r.db.WithContext(ctx).
		Where("carer_id = ? AND is_active = ?", carerID, true).
		Order("day_of_week ASC").
		Find(&tpls).Error
	return tpls, err
}

// Deactivate 停用模板；模板不做物理删除
func (r *shiftTemplateRepo) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShiftTemplate{}).
		Where("template_id = ?", id).
		Updates(map[string]interface{}{"is_active": false})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ── ShiftInstance Repository 实现 ──

type shiftInstanceRepo struct {
	db *gorm.DB
}

func NewShiftInstanceRepo(db *gorm.DB) ShiftInstanceRepository {
	return &shiftInstanceRepo{db: db}
}

func (r *shiftInstanceRepo) Create(ctx context.Context, inst *model.ShiftInstance) error {
	if inst.InstanceID == "" {
		inst.InstanceID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(inst).Error
}

func (r *shiftInstanceRepo) GetByID(ctx context.Context, id string) (*model.ShiftInstance, error) {
	var inst model.ShiftInstance
	err := r.db.WithContext(ctx).
		Preload("Template").
		Where("instance_id = ?", id).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *shiftInstanceRepo) FindScheduledByCarerAndDate(ctx context.Context, carerID, date string) (*model.ShiftInstance, error) {
	var inst model.ShiftInstance
	err := r.db.WithContext(ctx).
		Preload("Template").
		Joins("JOIN shift_templates ON shift_templates.template_id = shift_instances.template_id").
		Where("shift_templates.carer_id = ? AND shift_templates.is_active = ?", carerID, true).
		Where("shift_instances.instance_date = ? AND shift_instances.status = ?", date, model.InstanceScheduled).
		Order("shift_instances.created_at ASC").
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
