package dto

import "time"

// ── 变更申请 DTO ──

// EditTarget 编辑目标：具体时间条目或周期班次实例，二者恰好给出其一
type EditTarget struct {
	TimeEntryID     string `json:"time_entry_id"     binding:"omitempty,uuid"`
	ShiftInstanceID string `json:"shift_instance_id" binding:"omitempty,uuid"`
}

// IsInstance 目标是否为班次实例（需先物化）
func (t EditTarget) IsInstance() bool {
	return t.TimeEntryID == "" && t.ShiftInstanceID != ""
}

// Valid 恰好给出一个目标
func (t EditTarget) Valid() bool {
	return (t.TimeEntryID == "") != (t.ShiftInstanceID == "")
}

// CreateChangeRequestRequest 创建单条变更申请
// bundle_id 只由批量创建生成，不接受客户端传入
type CreateChangeRequestRequest struct {
	EditTarget
	NewStartAt   time.Time `json:"new_start_at"   binding:"required"`
	NewEndAt     time.Time `json:"new_end_at"     binding:"required"`
	NewShiftType string    `json:"new_shift_type" binding:"required,max=20"`
	Reason       string    `json:"reason"         binding:"omitempty,max=500"`
}

// DenyRequest 拒绝请求
type DenyRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// RevertRequest 撤销请求
type RevertRequest struct {
	Force bool `json:"force"`
}

// ChangeRequestListRequest 变更申请列表查询参数
type ChangeRequestListRequest struct {
	Status      string `form:"status"        binding:"omitempty,oneof=pending applied denied reverted archived"`
	TimeEntryID string `form:"time_entry_id" binding:"omitempty,uuid"`
	BundleID    string `form:"bundle_id"     binding:"omitempty,uuid"`
	Mine        bool   `form:"mine"`
	PaginationRequest
}

// SnapshotResponse 生效前快照
type SnapshotResponse struct {
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	ShiftType  string `json:"shift_type"`
	Notes      string `json:"notes"`
	CapturedAt string `json:"captured_at"`
}

// ChangeRequestResponse 变更申请响应
type ChangeRequestResponse struct {
	ID           string            `json:"id"`
	CareSpaceID  string            `json:"care_space_id"`
	TimeEntryID  string            `json:"time_entry_id"`
	RequestedBy  string            `json:"requested_by"`
	NewStartAt   string            `json:"new_start_at"`
	NewEndAt     string            `json:"new_end_at"`
	NewShiftType string            `json:"new_shift_type"`
	Reason       string            `json:"reason,omitempty"`
	Status       string            `json:"status"`
	Snapshot     *SnapshotResponse `json:"snapshot,omitempty"`
	BundleID     *string           `json:"bundle_id,omitempty"`
	AppliedBy    *string           `json:"applied_by,omitempty"`
	AppliedAt    *string           `json:"applied_at,omitempty"`
	DeniedBy     *string           `json:"denied_by,omitempty"`
	DeniedAt     *string           `json:"denied_at,omitempty"`
	DenyReason   string            `json:"deny_reason,omitempty"`
	RevertedBy   *string           `json:"reverted_by,omitempty"`
	RevertedAt   *string           `json:"reverted_at,omitempty"`
	ArchivedBy   *string           `json:"archived_by,omitempty"`
	ArchivedAt   *string           `json:"archived_at,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// ConflictResponse 撤销冲突详情
type ConflictResponse struct {
	AppliedAt  string `json:"applied_at"`
	ModifiedAt string `json:"modified_at"`
}

// 待审批队列条目类型
const (
	PendingKindSingle = "single"
	PendingKindBundle = "bundle"
)

// PendingItem 待审批队列条目；同一 bundle 的申请折叠为一条
type PendingItem struct {
	Kind    string                 `json:"kind"` // single | bundle
	Request *ChangeRequestResponse `json:"request,omitempty"`
	Bundle  *BundleSummary         `json:"bundle,omitempty"`
}
