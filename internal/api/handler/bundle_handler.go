package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// BundleHandler 批量申请 HTTP 处理器
type BundleHandler struct {
	bundleSvc service.BundleService
}

// NewBundleHandler 创建 BundleHandler
func NewBundleHandler(bundleSvc service.BundleService) *BundleHandler {
	return &BundleHandler{bundleSvc: bundleSvc}
}

// Create 按日期区间创建批量申请
// POST /api/v1/bundles
func (h *BundleHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	result, err := h.bundleSvc.CreateBundle(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleBundleError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 获取批量申请详情
// GET /api/v1/bundles/:id
func (h *BundleHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.bundleSvc.GetBundle(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleBundleError(c, err)
		return
	}

	response.OK(c, result)
}

// Approve 逐个批准成员
// POST /api/v1/bundles/:id/approve
func (h *BundleHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.bundleSvc.ApproveBundle(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleBundleError(c, err)
		return
	}

	respondBundleResult(c, result)
}

// Deny 逐个拒绝成员
// POST /api/v1/bundles/:id/deny
func (h *BundleHandler) Deny(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DenyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	result, err := h.bundleSvc.DenyBundle(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		h.handleBundleError(c, err)
		return
	}

	respondBundleResult(c, result)
}

// Delete 删除仍待审批的成员
// DELETE /api/v1/bundles/:id
func (h *BundleHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.bundleSvc.DeleteBundle(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleBundleError(c, err)
		return
	}

	respondBundleResult(c, result)
}

// respondBundleResult 部分成员失败时返回 207，失败成员保持原状
func respondBundleResult(c *gin.Context, result *dto.BundleResultResponse) {
	if result.Partial {
		response.MultiStatus(c, 16201, "部分成员处理失败", result)
		return
	}
	response.OK(c, result)
}

func (h *BundleHandler) handleBundleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBundleRangeTooLong):
		response.BadRequest(c, 16003, "日期区间超出单次批量上限")
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 16002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrBundleNotFound):
		response.NotFound(c, 16101, "批量申请不存在")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 16301, "无权执行该操作")
	default:
		response.InternalError(c)
	}
}
