package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"care-hub/backend/internal/model"
)

// ChangeRequestRepository 变更申请数据访问接口
type ChangeRequestRepository interface {
	Create(ctx context.Context, req *model.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*model.ChangeRequest, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.ChangeRequest, error)
	List(ctx context.Context, filter ChangeRequestFilter, offset, limit int) ([]model.ChangeRequest, int64, error)
	ListPending(ctx context.Context, careSpaceID string) ([]model.ChangeRequest, error)
	ListByBundle(ctx context.Context, bundleID string) ([]model.ChangeRequest, error)
	ListForExport(ctx context.Context, careSpaceID string, from, to time.Time) ([]model.ChangeRequest, error)
	// Transition 条件状态迁移：仅当当前状态属于 from 时写入 updates
	Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error
	// DeletePending 仅删除 pending 状态的申请
	DeletePending(ctx context.Context, id string) error
	// ArchiveDeniedBefore 归档 denied_at 早于 cutoff 的已拒绝申请
	ArchiveDeniedBefore(ctx context.Context, cutoff time.Time, actorID string, at time.Time) (int64, error)
}

// ChangeRequestFilter 列表查询条件
type ChangeRequestFilter struct {
	CareSpaceID string
	Status      string
	TimeEntryID string
	BundleID    string
	RequestedBy string
}

type changeRequestRepo struct {
	db *gorm.DB
}

// NewChangeRequestRepo 创建 ChangeRequestRepository 实例
func NewChangeRequestRepo(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepo{db: db}
}

func (r *changeRequestRepo) Create(ctx context.Context, req *model.ChangeRequest) error {
	if req.RequestID == "" {
		req.RequestID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *changeRequestRepo) GetByID(ctx context.Context, id string) (*model.ChangeRequest, error) {
	var req model.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *changeRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ChangeRequest, error) {
	var req model.ChangeRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *changeRequestRepo) List(ctx context.Context, filter ChangeRequestFilter, offset, limit int) ([]model.ChangeRequest, int64, error) {
	var reqs []model.ChangeRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ChangeRequest{}).
		Where("care_space_id = ?", filter.CareSpaceID)
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.TimeEntryID != "" {
		db = db.Where("time_entry_id = ?", filter.TimeEntryID)
	}
	if filter.BundleID != "" {
		db = db.Where("bundle_id = ?", filter.BundleID)
	}
	if filter.RequestedBy != "" {
		db = db.Where("requested_by = ?", filter.RequestedBy)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, total, err
}

func (r *changeRequestRepo) ListPending(ctx context.Context, careSpaceID string) ([]model.ChangeRequest, error) {
	var reqs []model.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("care_space_id = ? AND status = ?", careSpaceID, model.ChangeRequestPending).
		Order("new_start_at ASC, created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *changeRequestRepo) ListByBundle(ctx context.Context, bundleID string) ([]model.ChangeRequest, error) {
	var reqs []model.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("bundle_id = ?", bundleID).
		Order("new_start_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *changeRequestRepo) ListForExport(ctx context.Context, careSpaceID string, from, to time.Time) ([]model.ChangeRequest, error) {
	var reqs []model.ChangeRequest
	err := r.db.WithContext(ctx).
		Preload("TimeEntry").Preload("TimeEntry.Carer").
		Where("care_space_id = ? AND created_at >= ? AND created_at < ?", careSpaceID, from, to).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *changeRequestRepo) Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error {
	return conditionalUpdate(ctx, r.db, &model.ChangeRequest{}, "request_id", id, from, updates)
}

func (r *changeRequestRepo) DeletePending(ctx context.Context, id string) error {
	return conditionalDelete(ctx, r.db, &model.ChangeRequest{}, "request_id", id, model.ChangeRequestPending)
}

func (r *changeRequestRepo) ArchiveDeniedBefore(ctx context.Context, cutoff time.Time, actorID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ChangeRequest{}).
		Where("status = ? AND denied_at IS NOT NULL AND denied_at < ?", model.ChangeRequestDenied, cutoff).
		UpdateColumns(map[string]interface{}{
			"status":      model.ChangeRequestArchived,
			"archived_by": actorID,
			"archived_at": at,
			"updated_at":  at,
		})
	return result.RowsAffected, result.Error
}
