package dto

import "time"

// Actor 当前操作人（来自 JWT）
type Actor struct {
	ID          string
	CareSpaceID string
	Role        string
}

// IsReviewer 协调员与管理员可审批
func (a Actor) IsReviewer() bool {
	return a.Role == "coordinator" || a.Role == "admin"
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// MemberBrief 成员简要信息
type MemberBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FormatTime 统一输出 RFC3339（UTC，保留微秒）
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatTimePtr 可空时间
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}
