package dto

// ── 请假 / 请假撤销 DTO ──

// CreateLeaveRequest 提交请假
type CreateLeaveRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date"   binding:"required"`
	Reason    string `json:"reason"     binding:"omitempty,max=500"`
}

// LeaveListRequest 请假列表查询参数
type LeaveListRequest struct {
	Status  string `form:"status"   binding:"omitempty,oneof=pending approved denied cancelled"`
	CarerID string `form:"carer_id" binding:"omitempty,uuid"`
	PaginationRequest
}

// LeaveRequestResponse 请假申请响应
type LeaveRequestResponse struct {
	ID          string       `json:"id"`
	CareSpaceID string       `json:"care_space_id"`
	CarerID     string       `json:"carer_id"`
	Carer       *MemberBrief `json:"carer,omitempty"`
	StartDate   string       `json:"start_date"`
	EndDate     string       `json:"end_date"`
	Reason      string       `json:"reason,omitempty"`
	Status      string       `json:"status"`
	ReviewedBy  *string      `json:"reviewed_by,omitempty"`
	ReviewedAt  *string      `json:"reviewed_at,omitempty"`
	DenyReason  string       `json:"deny_reason,omitempty"`
	BundleID    *string      `json:"bundle_id,omitempty"`
	CreatedAt   string       `json:"created_at"`
}

// LeaveApproveResponse 批准请假结果，附带生成的 bundle
type LeaveApproveResponse struct {
	LeaveRequest LeaveRequestResponse  `json:"leave_request"`
	Bundle       BundleCreatedResponse `json:"bundle"`
}

// CoverConflictResponse 冲突代班展示信息
type CoverConflictResponse struct {
	EntryID   string `json:"entry_id"`
	CarerID   string `json:"carer_id"`
	CarerName string `json:"carer_name"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// LeaveCancellationOutcome 请假撤销结果
// Cancelled 为 true 表示无冲突已立即撤销；否则 RequestID 指向待审批的撤销申请
type LeaveCancellationOutcome struct {
	Cancelled bool                    `json:"cancelled"`
	RequestID string                  `json:"request_id,omitempty"`
	Conflicts []CoverConflictResponse `json:"conflicts,omitempty"`
}

// LeaveCancellationListRequest 撤销申请列表查询参数
type LeaveCancellationListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved denied"`
}

// LeaveCancellationResponse 请假撤销申请响应
type LeaveCancellationResponse struct {
	ID          string                  `json:"id"`
	CareSpaceID string                  `json:"care_space_id"`
	TimeEntryID string                  `json:"time_entry_id"`
	RequestedBy string                  `json:"requested_by"`
	Conflicts   []CoverConflictResponse `json:"conflicts"`
	Status      string                  `json:"status"`
	ReviewedBy  *string                 `json:"reviewed_by,omitempty"`
	ReviewedAt  *string                 `json:"reviewed_at,omitempty"`
	CreatedAt   string                  `json:"created_at"`
}
