package dto

// ── 批量申请（bundle）DTO ──

// CreateBundleRequest 按日期区间批量创建变更申请
// 未给出 start_time / end_time 时沿用各日条目原有时间
type CreateBundleRequest struct {
	CarerID      string  `json:"carer_id"       binding:"required,uuid"`
	StartDate    string  `json:"start_date"     binding:"required"`
	EndDate      string  `json:"end_date"       binding:"required"`
	NewShiftType string  `json:"new_shift_type" binding:"required,max=20"`
	StartTime    *string `json:"start_time"     binding:"omitempty,len=5"` // HH:MM
	EndTime      *string `json:"end_time"       binding:"omitempty,len=5"`
	Reason       string  `json:"reason"         binding:"omitempty,max=500"`
}

// BundleCreatedResponse 批量创建结果
type BundleCreatedResponse struct {
	BundleID   string   `json:"bundle_id"`
	RequestIDs []string `json:"request_ids"`
}

// BundleSummary 折叠后的 bundle 概要
type BundleSummary struct {
	BundleID     string         `json:"bundle_id"`
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	MemberCount  int            `json:"member_count"`
	PendingCount int            `json:"pending_count"`
	StatusCounts map[string]int `json:"status_counts"`
	NewShiftType string         `json:"new_shift_type"`
	RequestedBy  string         `json:"requested_by"`
	Reason       string         `json:"reason,omitempty"`
}

// BundleResponse bundle 详情
type BundleResponse struct {
	Summary BundleSummary           `json:"summary"`
	Members []ChangeRequestResponse `json:"members"`
}

// BundleResultResponse 批量操作结果；Partial 为 true 表示部分成员失败
type BundleResultResponse struct {
	BundleID  string            `json:"bundle_id"`
	Succeeded []string          `json:"succeeded"`
	Failed    []string          `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
	Partial   bool              `json:"partial"`
}
