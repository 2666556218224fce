package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// ChangeRequestHandler 变更申请 HTTP 处理器
type ChangeRequestHandler struct {
	changeRequestSvc service.ChangeRequestService
}

// NewChangeRequestHandler 创建 ChangeRequestHandler
func NewChangeRequestHandler(changeRequestSvc service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{changeRequestSvc: changeRequestSvc}
}

// Create 创建变更申请
// POST /api/v1/change-requests
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.changeRequestSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 获取变更申请详情
// GET /api/v1/change-requests/:id
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.changeRequestSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// List 变更申请列表
// GET /api/v1/change-requests
func (h *ChangeRequestHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ChangeRequestListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	list, total, err := h.changeRequestSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListPending 待审批队列（同一 bundle 折叠）
// GET /api/v1/change-requests/pending
func (h *ChangeRequestHandler) ListPending(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	items, err := h.changeRequestSvc.ListPending(c.Request.Context(), actor)
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// Approve 批准并生效
// POST /api/v1/change-requests/:id/approve
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.changeRequestSvc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// Deny 拒绝申请
// POST /api/v1/change-requests/:id/deny
func (h *ChangeRequestHandler) Deny(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DenyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.changeRequestSvc.Deny(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// Revert 撤销已生效的申请
// POST /api/v1/change-requests/:id/revert
// 目标条目在生效后被修改时返回 409 及两个时间戳，请求体或查询参数 force=true 可强制撤销
func (h *ChangeRequestHandler) Revert(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.RevertRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	if q := c.Query("force"); q != "" {
		force, err := strconv.ParseBool(q)
		if err != nil {
			response.BadRequest(c, 15001, "force 参数无效")
			return
		}
		req.Force = req.Force || force
	}

	result, err := h.changeRequestSvc.Revert(c.Request.Context(), actor, c.Param("id"), req.Force)
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// Archive 归档已拒绝或已撤销的申请
// POST /api/v1/change-requests/:id/archive
func (h *ChangeRequestHandler) Archive(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.changeRequestSvc.Archive(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除待审批申请
// DELETE /api/v1/change-requests/:id
func (h *ChangeRequestHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.changeRequestSvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.handleChangeRequestError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *ChangeRequestHandler) handleChangeRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrChangeRequestNotFound):
		response.NotFound(c, 15101, "变更申请不存在")
	case errors.Is(err, service.ErrTimeEntryNotFound):
		response.NotFound(c, 15102, "时间条目不存在")
	case errors.Is(err, service.ErrShiftInstanceNotFound):
		response.NotFound(c, 15103, "班次实例不存在")
	case errors.Is(err, service.ErrRevertConflict):
		response.ErrorWithData(c, http.StatusConflict, 15201, "目标条目在申请生效后已被修改", conflictData(err))
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.Conflict(c, 15202, "申请已被处理，请刷新后重试")
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 15203, "当前状态不允许该操作")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 15301, "无权执行该操作")
	default:
		response.InternalError(c)
	}
}
