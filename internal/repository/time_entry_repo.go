package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"care-hub/backend/internal/model"
)

// TimeEntryRepository 时间条目数据访问接口
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *model.TimeEntry) error
	// CreateMaterialized 插入由实例物化的条目；实例已被物化时不插入并返回 false
	CreateMaterialized(ctx context.Context, entry *model.TimeEntry) (bool, error)
	GetByID(ctx context.Context, id string) (*model.TimeEntry, error)
	// GetByIDForUpdate 事务内加行锁读取（SQLite 下忽略锁子句）
	GetByIDForUpdate(ctx context.Context, id string) (*model.TimeEntry, error)
	GetByInstanceID(ctx context.Context, instanceID string) (*model.TimeEntry, error)
	// FindByCarerInRange 查找护工在 [from, to) 内开始的条目
	FindByCarerInRange(ctx context.Context, carerID string, from, to time.Time) ([]model.TimeEntry, error)
	ListRange(ctx context.Context, filter TimeEntryFilter) ([]model.TimeEntry, error)
	// FindCoverConflicts 同照护空间内、其他护工、指定类型、[from, to) 内开始的条目
	FindCoverConflicts(ctx context.Context, careSpaceID, excludeCarerID, shiftType string, from, to time.Time) ([]model.TimeEntry, error)
	// UpdateFields 直接写列，调用方负责给出 updated_at
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// TimeEntryFilter 日历区间查询条件
type TimeEntryFilter struct {
	CareSpaceID string
	CarerID     string
	From        time.Time
	To          time.Time
}

type timeEntryRepo struct {
	db *gorm.DB
}

// NewTimeEntryRepo 创建 TimeEntryRepository 实例
func NewTimeEntryRepo(db *gorm.DB) TimeEntryRepository {
	return &timeEntryRepo{db: db}
}

func (r *timeEntryRepo) Create(ctx context.Context, entry *model.TimeEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *timeEntryRepo) CreateMaterialized(ctx context.Context, entry *model.TimeEntry) (bool, error) {
	if entry.EntryID == "" {
		entry.EntryID = model.NewID()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shift_instance_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *timeEntryRepo) GetByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	var entry model.TimeEntry
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timeEntryRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.TimeEntry, error) {
	var entry model.TimeEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entry_id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timeEntryRepo) GetByInstanceID(ctx context.Context, instanceID string) (*model.TimeEntry, error) {
	var entry model.TimeEntry
	err := r.db.WithContext(ctx).
		Where("shift_instance_id = ?", instanceID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timeEntryRepo) FindByCarerInRange(ctx context.Context, carerID string, from, to time.Time) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	err := r.db.WithContext(ctx).
		Where("carer_id = ? AND start_at >= ? AND start_at < ?", carerID, from, to).
		Order("start_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *timeEntryRepo) ListRange(ctx context.Context, filter TimeEntryFilter) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	db := r.db.WithContext(ctx).
		Preload("Carer").
		Where("care_space_id = ? AND start_at >= ? AND start_at < ?", filter.CareSpaceID, filter.From, filter.To)
	if filter.CarerID != "" {
		db = db.Where("carer_id = ?", filter.CarerID)
	}
	err := db.Order("start_at ASC").Find(&entries).Error
	return entries, err
}

func (r *timeEntryRepo) FindCoverConflicts(ctx context.Context, careSpaceID, excludeCarerID, shiftType string, from, to time.Time) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	err := r.db.WithContext(ctx).
		Preload("Carer").
		Where("care_space_id = ? AND carer_id <> ? AND shift_type = ?", careSpaceID, excludeCarerID, shiftType).
		Where("start_at >= ? AND start_at < ?", from, to).
		Order("start_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *timeEntryRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.TimeEntry{}).
		Where("entry_id = ?", id).
		UpdateColumns(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *timeEntryRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("entry_id IN ?", ids).
		Delete(&model.TimeEntry{})
	return result.RowsAffected, result.Error
}
