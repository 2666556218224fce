package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// LeaveRequestHandler 请假申请 HTTP 处理器
type LeaveRequestHandler struct {
	leaveSvc service.LeaveRequestService
}

// NewLeaveRequestHandler 创建 LeaveRequestHandler
func NewLeaveRequestHandler(leaveSvc service.LeaveRequestService) *LeaveRequestHandler {
	return &LeaveRequestHandler{leaveSvc: leaveSvc}
}

// Create 提交请假
// POST /api/v1/leave-requests
func (h *LeaveRequestHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 18001, "参数校验失败")
		return
	}

	result, err := h.leaveSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.Created(c, result)
}

// List 请假列表
// GET /api/v1/leave-requests
func (h *LeaveRequestHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.LeaveListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 18001, "参数校验失败")
		return
	}

	list, total, err := h.leaveSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Approve 批准请假，生成请假 bundle
// POST /api/v1/leave-requests/:id/approve
func (h *LeaveRequestHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, result)
}

// Deny 拒绝请假
// POST /api/v1/leave-requests/:id/deny
func (h *LeaveRequestHandler) Deny(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DenyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, 18001, "参数校验失败")
		return
	}

	result, err := h.leaveSvc.Deny(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, result)
}

// Cancel 申请人撤回待审批的请假
// POST /api/v1/leave-requests/:id/cancel
func (h *LeaveRequestHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *LeaveRequestHandler) handleLeaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBundleRangeTooLong):
		response.BadRequest(c, 18003, "请假天数超出上限")
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 18002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrLeaveRequestNotFound):
		response.NotFound(c, 18101, "请假申请不存在")
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.Conflict(c, 18201, "申请已被处理，请刷新后重试")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 18301, "无权执行该操作")
	default:
		response.InternalError(c)
	}
}
