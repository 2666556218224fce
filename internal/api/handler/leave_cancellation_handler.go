package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// LeaveCancellationHandler 请假撤销 HTTP 处理器
type LeaveCancellationHandler struct {
	cancellationSvc service.LeaveCancellationService
}

// NewLeaveCancellationHandler 创建 LeaveCancellationHandler
func NewLeaveCancellationHandler(cancellationSvc service.LeaveCancellationService) *LeaveCancellationHandler {
	return &LeaveCancellationHandler{cancellationSvc: cancellationSvc}
}

// Request 撤销请假
// POST /api/v1/time-entries/:id/cancel-leave
// 无代班冲突时立即撤销（200）；否则创建待审批的撤销申请并返回冲突列表（201）
func (h *LeaveCancellationHandler) Request(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	outcome, err := h.cancellationSvc.RequestCancellation(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleCancellationError(c, err)
		return
	}

	if outcome.Cancelled {
		response.OK(c, outcome)
		return
	}
	response.Created(c, outcome)
}

// Get 获取撤销申请
// GET /api/v1/leave-cancellations/:id
func (h *LeaveCancellationHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.cancellationSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleCancellationError(c, err)
		return
	}

	response.OK(c, result)
}

// List 撤销申请列表（默认仅待审批）
// GET /api/v1/leave-cancellations
func (h *LeaveCancellationHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.LeaveCancellationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	list, err := h.cancellationSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleCancellationError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Approve 批准撤销：请假恢复为默认班次并删除冲突代班
// POST /api/v1/leave-cancellations/:id/approve
func (h *LeaveCancellationHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.cancellationSvc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleCancellationError(c, err)
		return
	}

	response.OK(c, result)
}

// Deny 拒绝撤销
// POST /api/v1/leave-cancellations/:id/deny
func (h *LeaveCancellationHandler) Deny(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.cancellationSvc.Deny(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleCancellationError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *LeaveCancellationHandler) handleCancellationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrLeaveCancellationNotFound):
		response.NotFound(c, 17101, "请假撤销申请不存在")
	case errors.Is(err, service.ErrTimeEntryNotFound):
		response.NotFound(c, 17102, "时间条目不存在")
	case errors.Is(err, service.ErrLeaveCancellationPending):
		response.Conflict(c, 17201, "该请假已有待审批的撤销申请")
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.Conflict(c, 17202, "申请已被处理，请刷新后重试")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 17301, "无权执行该操作")
	default:
		response.InternalError(c)
	}
}
