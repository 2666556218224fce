package dto

// ── 时间条目 / 日历 DTO ──

// TimeEntryListRequest 日历区间查询参数，日期为 YYYY-MM-DD，to 为闭区间
type TimeEntryListRequest struct {
	From    string `form:"from"     binding:"required"`
	To      string `form:"to"       binding:"required"`
	CarerID string `form:"carer_id" binding:"omitempty,uuid"`
}

// TimeEntryResponse 时间条目响应
type TimeEntryResponse struct {
	ID              string       `json:"id"`
	CareSpaceID     string       `json:"care_space_id"`
	CarerID         string       `json:"carer_id"`
	Carer           *MemberBrief `json:"carer,omitempty"`
	StartAt         string       `json:"start_at"`
	EndAt           string       `json:"end_at"`
	ShiftType       string       `json:"shift_type"`
	Notes           string       `json:"notes,omitempty"`
	ShiftInstanceID *string      `json:"shift_instance_id,omitempty"`
	UpdatedAt       string       `json:"updated_at"`
}

// MaterializeResponse 物化结果
type MaterializeResponse struct {
	TimeEntryID string `json:"time_entry_id"`
	Created     bool   `json:"created"` // false 表示实例此前已物化
}
