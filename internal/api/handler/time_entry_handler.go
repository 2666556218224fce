package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// TimeEntryHandler 日历与物化 HTTP 处理器
type TimeEntryHandler struct {
	timeEntrySvc service.TimeEntryService
}

// NewTimeEntryHandler 创建 TimeEntryHandler
func NewTimeEntryHandler(timeEntrySvc service.TimeEntryService) *TimeEntryHandler {
	return &TimeEntryHandler{timeEntrySvc: timeEntrySvc}
}

// Materialize 物化班次实例
// POST /api/v1/shift-instances/:id/materialize
func (h *TimeEntryHandler) Materialize(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.timeEntrySvc.Materialize(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// ListRange 日历区间读取
// GET /api/v1/time-entries?from=&to=&carer_id=
func (h *TimeEntryHandler) ListRange(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.TimeEntryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	list, err := h.timeEntrySvc.ListRange(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get 获取单个时间条目
// GET /api/v1/time-entries/:id
func (h *TimeEntryHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entry, err := h.timeEntrySvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	response.OK(c, entry)
}

func (h *TimeEntryHandler) handleTimeEntryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 14002, "参数校验失败", validationDetails(err))
	case errors.Is(err, service.ErrTimeEntryNotFound):
		response.NotFound(c, 14101, "时间条目不存在")
	case errors.Is(err, service.ErrShiftInstanceNotFound):
		response.NotFound(c, 14102, "班次实例不存在")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 14301, "无权执行该操作")
	default:
		response.InternalError(c)
	}
}
