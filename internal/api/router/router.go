package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"care-hub/backend/config"
	"care-hub/backend/internal/api/handler"
	"care-hub/backend/internal/api/middleware"
	"care-hub/backend/pkg/jwt"
	"care-hub/backend/pkg/redis"
)

// 审批类操作允许的角色
var reviewerRoles = []string{"coordinator", "admin"}

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil（黑名单与限流降级放行）
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db, rdb))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	v1.Use(middleware.RateLimit(rdb, 120, time.Minute))
	{
		reviewer := middleware.RoleAuth(reviewerRoles...)

		// 班次实例物化
		v1.POST("/shift-instances/:id/materialize", h.TimeEntry.Materialize)

		// 日历
		timeEntries := v1.Group("/time-entries")
		{
			timeEntries.GET("", h.TimeEntry.ListRange)
			timeEntries.GET("/:id", h.TimeEntry.Get)
			timeEntries.POST("/:id/cancel-leave", h.LeaveCancellation.Request)
		}

		// 变更申请
		changeRequests := v1.Group("/change-requests")
		{
			changeRequests.POST("", h.ChangeRequest.Create)
			changeRequests.GET("", h.ChangeRequest.List)
			changeRequests.GET("/pending", reviewer, h.ChangeRequest.ListPending)
			changeRequests.GET("/:id", h.ChangeRequest.Get)
			changeRequests.POST("/:id/approve", reviewer, h.ChangeRequest.Approve)
			changeRequests.POST("/:id/deny", reviewer, h.ChangeRequest.Deny)
			changeRequests.POST("/:id/revert", reviewer, h.ChangeRequest.Revert)
			changeRequests.POST("/:id/archive", reviewer, h.ChangeRequest.Archive)
			changeRequests.DELETE("/:id", h.ChangeRequest.Delete) // 申请人或审核人（Service 层鉴权）
		}

		// 批量申请
		bundles := v1.Group("/bundles")
		{
			bundles.POST("", h.Bundle.Create)
			bundles.GET("/:id", h.Bundle.Get)
			bundles.POST("/:id/approve", reviewer, h.Bundle.Approve)
			bundles.POST("/:id/deny", reviewer, h.Bundle.Deny)
			bundles.DELETE("/:id", h.Bundle.Delete)
		}

		// 请假撤销
		cancellations := v1.Group("/leave-cancellations")
		{
			cancellations.GET("", reviewer, h.LeaveCancellation.List)
			cancellations.GET("/:id", h.LeaveCancellation.Get)
			cancellations.POST("/:id/approve", reviewer, h.LeaveCancellation.Approve)
			cancellations.POST("/:id/deny", reviewer, h.LeaveCancellation.Deny)
		}

		// 请假
		leaves := v1.Group("/leave-requests")
		{
			leaves.POST("", h.LeaveRequest.Create)
			leaves.GET("", h.LeaveRequest.List)
			leaves.POST("/:id/approve", reviewer, h.LeaveRequest.Approve)
			leaves.POST("/:id/deny", reviewer, h.LeaveRequest.Deny)
			leaves.POST("/:id/cancel", h.LeaveRequest.Cancel)
		}

		// 审计导出
		export := v1.Group("/export")
		{
			export.GET("/change-requests", reviewer, h.Export.ExportChangeRequests)
		}
	}

	return r
}

// healthCheck 数据库必须可用；Redis 仅报告状态
func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		code := http.StatusOK

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"], status["database"] = "degraded", "unavailable"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(c.Request.Context()); err != nil {
				status["redis"] = "unavailable"
			}
		}
		c.JSON(code, status)
	}
}
