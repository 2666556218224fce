package dto

// ExportChangeRequestsRequest 变更申请审计导出参数（YYYY-MM-DD，to 为闭区间）
type ExportChangeRequestsRequest struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to"   binding:"required"`
}
