package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"care-hub/backend/internal/model"
)

// LeaveRequestRepository 请假申请数据访问接口
type LeaveRequestRepository interface {
	Create(ctx context.Context, req *model.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*model.LeaveRequest, error)
	List(ctx context.Context, careSpaceID, carerID, status string, offset, limit int) ([]model.LeaveRequest, int64, error)
	Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error
	DeleteDeniedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LeaveCancellationRepository 请假撤销申请数据访问接口
type LeaveCancellationRepository interface {
	Create(ctx context.Context, req *model.LeaveCancellationRequest) error
	GetByID(ctx context.Context, id string) (*model.LeaveCancellationRequest, error)
	GetPendingByEntry(ctx context.Context, entryID string) (*model.LeaveCancellationRequest, error)
	List(ctx context.Context, careSpaceID, status string) ([]model.LeaveCancellationRequest, error)
	Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error
	DeleteDeniedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ── LeaveRequest Repository 实现 ──

type leaveRequestRepo struct {
	db *gorm.DB
}

func NewLeaveRequestRepo(db *gorm.DB) LeaveRequestRepository {
	return &leaveRequestRepo{db: db}
}

func (r *leaveRequestRepo) Create(ctx context.Context, req *model.LeaveRequest) error {
	if req.LeaveRequestID == "" {
		req.LeaveRequestID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *leaveRequestRepo) GetByID(ctx context.Context, id string) (*model.LeaveRequest, error) {
	var req model.LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Carer").
		Where("leave_request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *leaveRequestRepo) List(ctx context.Context, careSpaceID, carerID, status string, offset, limit int) ([]model.LeaveRequest, int64, error) {
	var reqs []model.LeaveRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.LeaveRequest{}).
		Where("care_space_id = ?", careSpaceID)
	if carerID != "" {
		db = db.Where("carer_id = ?", carerID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Carer").
		Offset(offset).Limit(limit).
		Order("start_date DESC, created_at DESC").
		Find(&reqs).Error
	return reqs, total, err
}

func (r *leaveRequestRepo) Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error {
	return conditionalUpdate(ctx, r.db, &model.LeaveRequest{}, "leave_request_id", id, from, updates)
}

func (r *leaveRequestRepo) DeleteDeniedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND reviewed_at IS NOT NULL AND reviewed_at < ?", model.LeaveDenied, cutoff).
		Delete(&model.LeaveRequest{})
	return result.RowsAffected, result.Error
}

// ── LeaveCancellation Repository 实现 ──

type leaveCancellationRepo struct {
	db *gorm.DB
}

func NewLeaveCancellationRepo(db *gorm.DB) LeaveCancellationRepository {
	return &leaveCancellationRepo{db: db}
}

func (r *leaveCancellationRepo) Create(ctx context.Context, req *model.LeaveCancellationRequest) error {
	if req.RequestID == "" {
		req.RequestID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *leaveCancellationRepo) GetByID(ctx context.Context, id string) (*model.LeaveCancellationRequest, error) {
	var req model.LeaveCancellationRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *leaveCancellationRepo) GetPendingByEntry(ctx context.Context, entryID string) (*model.LeaveCancellationRequest, error) {
	var req model.LeaveCancellationRequest
	err := r.db.WithContext(ctx).
		Where("time_entry_id = ? AND status = ?", entryID, model.CancellationPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *leaveCancellationRepo) List(ctx context.Context, careSpaceID, status string) ([]model.LeaveCancellationRequest, error) {
	var reqs []model.LeaveCancellationRequest
	db := r.db.WithContext(ctx).Where("care_space_id = ?", careSpaceID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

func (r *leaveCancellationRepo) Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) error {
	return conditionalUpdate(ctx, r.db, &model.LeaveCancellationRequest{}, "request_id", id, from, updates)
}

func (r *leaveCancellationRepo) DeleteDeniedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND reviewed_at IS NOT NULL AND reviewed_at < ?", model.CancellationDenied, cutoff).
		Delete(&model.LeaveCancellationRequest{})
	return result.RowsAffected, result.Error
}
