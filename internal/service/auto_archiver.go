package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
)

const (
	sweepLeaseKey = "care-hub:sweep:lease"
	sweepTimeout  = 30 * time.Second
)

// SweepReport 一次清理的结果
type SweepReport struct {
	ArchivedChangeRequests    int64 `json:"archived_change_requests"`
	DeletedLeaveRequests      int64 `json:"deleted_leave_requests"`
	DeletedLeaveCancellations int64 `json:"deleted_leave_cancellations"`
}

// Total 受影响记录总数
func (r SweepReport) Total() int64 {
	return r.ArchivedChangeRequests + r.DeletedLeaveRequests + r.DeletedLeaveCancellations
}

// AutoArchiver 清理超过保留期的已拒绝申请
//
// 没有独立调度线程：列表读取时调用 MaybeSweep 顺带触发。
// 变更申请归档（archived_by 为系统操作人），请假与请假撤销没有归档状态，直接删除。
// 只处理 denied，pending / applied 无论多旧都不会被触碰。
type AutoArchiver struct {
	*core

	running atomic.Bool
	lastRun atomic.Int64 // 无 Redis 时的进程内节流（UnixNano）
	holder  string       // 租约持有者标识
	wg      sync.WaitGroup
}

// NewAutoArchiver 创建 AutoArchiver
func NewAutoArchiver(c *core) *AutoArchiver {
	return &AutoArchiver{core: c, holder: model.NewID()}
}

// Sweep 执行一次清理，三类记录在同一事务内处理
func (a *AutoArchiver) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	at := a.now()
	cutoff := at.Add(-a.cfg.DeniedRetention)

	err := a.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if report.ArchivedChangeRequests, err = tx.ChangeRequest.ArchiveDeniedBefore(ctx, cutoff, a.cfg.SystemActorID, at); err != nil {
			return storageErr("归档已拒绝变更申请", err)
		}
		if report.DeletedLeaveRequests, err = tx.LeaveRequest.DeleteDeniedBefore(ctx, cutoff); err != nil {
			return storageErr("删除已拒绝请假申请", err)
		}
		if report.DeletedLeaveCancellations, err = tx.LeaveCancellation.DeleteDeniedBefore(ctx, cutoff); err != nil {
			return storageErr("删除已拒绝撤销申请", err)
		}
		return nil
	})
	if err != nil {
		a.logger.Error("自动归档失败", zap.Error(err))
		return SweepReport{}, err
	}

	if report.Total() > 0 {
		a.logger.Info("自动归档完成",
			zap.Int64("archived_change_requests", report.ArchivedChangeRequests),
			zap.Int64("deleted_leave_requests", report.DeletedLeaveRequests),
			zap.Int64("deleted_leave_cancellations", report.DeletedLeaveCancellations),
			zap.Time("cutoff", cutoff),
		)
		a.emit(ctx, dto.WorkflowEvent{Type: dto.EventAutoArchived, ActorID: a.cfg.SystemActorID})
	}
	return report, nil
}

// MaybeSweep 非阻塞触发一次清理
// 每个 SweepInterval 至多执行一次；使用独立 context，调用方取消读取不影响清理
func (a *AutoArchiver) MaybeSweep() {
	if !a.running.CompareAndSwap(false, true) {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if !a.acquire(ctx) {
			return
		}
		_, _ = a.Sweep(ctx)
	}()
}

// Wait 等待进行中的后台清理结束
func (a *AutoArchiver) Wait() {
	a.wg.Wait()
}

// acquire 获取本轮执行权：优先 Redis 租约（多实例共享），否则进程内时间戳
func (a *AutoArchiver) acquire(ctx context.Context) bool {
	if a.rdb != nil {
		ok, err := a.rdb.AcquireLease(ctx, sweepLeaseKey, a.holder, a.cfg.SweepInterval)
		if err == nil {
			return ok
		}
		a.logger.Warn("获取归档租约失败，退回进程内节流", zap.Error(err))
	}

	now := a.now().UnixNano()
	last := a.lastRun.Load()
	if last != 0 && now-last < int64(a.cfg.SweepInterval) {
		return false
	}
	return a.lastRun.CompareAndSwap(last, now)
}
