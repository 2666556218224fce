package service

import (
	"time"

	"care-hub/backend/internal/model"
)

// SnapshotManager 捕获与还原时间条目的生效前状态
// Capture 必须在批准事务内、写入新值之前调用
type SnapshotManager struct{}

// Capture 捕获条目当前字段
func (SnapshotManager) Capture(entry *model.TimeEntry, at time.Time) model.EntrySnapshot {
	return model.EntrySnapshot{
		StartAt:    entry.StartAt.UTC(),
		EndAt:      entry.EndAt.UTC(),
		ShiftType:  entry.ShiftType,
		Notes:      entry.Notes,
		CapturedAt: at,
	}
}

// Restore 生成将条目恢复到快照状态的列更新
func (SnapshotManager) Restore(snap model.EntrySnapshot, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"start_at":   snap.StartAt,
		"end_at":     snap.EndAt,
		"shift_type": snap.ShiftType,
		"notes":      snap.Notes,
		"updated_at": at,
	}
}
