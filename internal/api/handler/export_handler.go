package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportChangeRequests 导出变更申请审计表
// GET /api/v1/export/change-requests?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ExportHandler) ExportChangeRequests(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ExportChangeRequestsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 19001, "from 与 to 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportChangeRequests(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 19002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrExportNoItems):
		response.NotFound(c, 19101, "区间内无变更申请")
	default:
		response.InternalError(c)
	}
}
