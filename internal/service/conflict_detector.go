package service

import (
	"time"

	"care-hub/backend/internal/model"
)

// ConflictCheck 冲突检测结果
type ConflictCheck struct {
	Conflict   bool
	AppliedAt  time.Time
	ModifiedAt time.Time
}

// Err 有冲突时返回 *ConflictError
func (c ConflictCheck) Err() error {
	if !c.Conflict {
		return nil
	}
	return &ConflictError{AppliedAt: c.AppliedAt, ModifiedAt: c.ModifiedAt}
}

// ConflictDetector 判断目标条目在申请生效后是否被其他操作修改
type ConflictDetector struct{}

// Check 比较条目 updated_at 与申请 applied_at
// updated_at 晚于 applied_at 即为冲突；缺少任一时间戳或二者相等时视为可安全撤销
func (ConflictDetector) Check(req *model.ChangeRequest, entry *model.TimeEntry) ConflictCheck {
	if req.AppliedAt == nil || entry == nil || entry.UpdatedAt.IsZero() {
		return ConflictCheck{}
	}
	check := ConflictCheck{AppliedAt: *req.AppliedAt, ModifiedAt: entry.UpdatedAt}
	check.Conflict = entry.UpdatedAt.After(*req.AppliedAt)
	return check
}
