package repository

import (
	"context"

	"gorm.io/gorm"

	pkgerrors "care-hub/backend/pkg/errors"
)

// conditionalUpdate 仅当记录仍处于 fromStatuses 之一时更新
// 状态校验与写入在同一条 UPDATE 中完成，影响行数为 0 即视为并发冲突
func conditionalUpdate(ctx context.Context, db *gorm.DB, m interface{}, idColumn, id string, fromStatuses []string, updates map[string]interface{}) error {
	result := db.WithContext(ctx).
		Model(m).
		Where(idColumn+" = ? AND status IN ?", id, fromStatuses).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// conditionalDelete 仅当记录仍处于 status 时删除
func conditionalDelete(ctx context.Context, db *gorm.DB, m interface{}, idColumn, id, status string) error {
	result := db.WithContext(ctx).
		Where(idColumn+" = ? AND status = ?", id, status).
		Delete(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}
