package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/service"
	"care-hub/backend/pkg/response"
)

// MustGetActor 从 Gin 上下文中提取当前操作人。
// JWT 中间件未注入 user_id / role / care_space_id 时写入 401 响应并返回 false，
// 调用方应在 ok=false 时直接 return。
func MustGetActor(c *gin.Context) (dto.Actor, bool) {
	userID, ok1 := getString(c, "user_id")
	role, ok2 := getString(c, "role")
	careSpaceID, ok3 := getString(c, "care_space_id")
	if !ok1 || !ok2 || !ok3 {
		response.Unauthorized(c, 10002, "未认证")
		return dto.Actor{}, false
	}
	return dto.Actor{ID: userID, Role: role, CareSpaceID: careSpaceID}, true
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// bindOptionalJSON 绑定可选的 JSON 请求体，空请求体视为未传。
// 分块传输时 ContentLength 为 -1，不能据此判断是否有请求体。
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// validationDetails 提取校验失败的字段说明
func validationDetails(err error) string {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// conflictData 撤销冲突时返回的两个时间戳
func conflictData(err error) *dto.ConflictResponse {
	var ce *service.ConflictError
	if !errors.As(err, &ce) {
		return nil
	}
	return &dto.ConflictResponse{
		AppliedAt:  dto.FormatTime(ce.AppliedAt),
		ModifiedAt: dto.FormatTime(ce.ModifiedAt),
	}
}
