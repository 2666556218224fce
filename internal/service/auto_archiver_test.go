package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"care-hub/backend/config"
	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/pkg/redis"
)

func TestAutoArchiver_Sweep(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	oldDenied := env.createRequest(env.seedEntry(env.alice, "2024-06-03", "basic"))
	oldPending := env.createRequest(env.seedEntry(env.alice, "2024-06-04", "basic"))
	oldApplied := env.createRequest(env.seedEntry(env.alice, "2024-06-05", "basic"))
	if _, err := env.svc.ChangeRequest.Deny(env.ctx, reviewer, oldDenied.ID, ""); err != nil {
		t.Fatalf("Deny 失败: %v", err)
	}
	if _, err := env.svc.ChangeRequest.Approve(env.ctx, reviewer, oldApplied.ID); err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}

	leave, err := env.svc.LeaveRequest.Create(env.ctx, env.actor(env.alice), &dto.CreateLeaveRequest{StartDate: "2024-06-20", EndDate: "2024-06-21"})
	if err != nil {
		t.Fatalf("创建请假失败: %v", err)
	}
	if _, err := env.svc.LeaveRequest.Deny(env.ctx, reviewer, leave.ID, ""); err != nil {
		t.Fatalf("拒绝请假失败: %v", err)
	}

	leaveEntry := env.seedEntry(env.alice, "2024-06-10", "leave")
	env.seedEntry(env.bob, "2024-06-10", "cover")
	outcome, err := env.svc.LeaveCancellation.RequestCancellation(env.ctx, env.actor(env.alice), leaveEntry.EntryID)
	if err != nil {
		t.Fatalf("提交撤销失败: %v", err)
	}
	if _, err := env.svc.LeaveCancellation.Deny(env.ctx, reviewer, outcome.RequestID); err != nil {
		t.Fatalf("拒绝撤销失败: %v", err)
	}

	env.clock.Advance(8 * 24 * time.Hour)

	recentDenied := env.createRequest(env.seedEntry(env.alice, "2024-06-06", "basic"))
	if _, err := env.svc.ChangeRequest.Deny(env.ctx, reviewer, recentDenied.ID, ""); err != nil {
		t.Fatalf("Deny 失败: %v", err)
	}

	report, err := env.svc.Archiver.Sweep(env.ctx)
	if err != nil {
		t.Fatalf("Sweep 失败: %v", err)
	}
	want := SweepReport{ArchivedChangeRequests: 1, DeletedLeaveRequests: 1, DeletedLeaveCancellations: 1}
	if report != want {
		t.Errorf("期望 %+v，实际 %+v", want, report)
	}

	archived := env.request(oldDenied.ID)
	if archived.Status != model.ChangeRequestArchived || archived.ArchivedBy == nil ||
		*archived.ArchivedBy != config.DefaultWorkflowConfig().SystemActorID {
		t.Errorf("过期的已拒绝申请应由系统归档，实际 %s", archived.Status)
	}
	if s := env.request(oldPending.ID).Status; s != model.ChangeRequestPending {
		t.Errorf("pending 不应被触碰，实际 %s", s)
	}
	if s := env.request(oldApplied.ID).Status; s != model.ChangeRequestApplied {
		t.Errorf("applied 不应被触碰，实际 %s", s)
	}
	if s := env.request(recentDenied.ID).Status; s != model.ChangeRequestDenied {
		t.Errorf("保留期内的 denied 不应被归档，实际 %s", s)
	}
	if _, err := env.svc.LeaveCancellation.Get(env.ctx, reviewer, outcome.RequestID); !errors.Is(err, ErrLeaveCancellationNotFound) {
		t.Errorf("过期的已拒绝撤销申请应被删除，实际: %v", err)
	}

	// 再次清理无事可做
	again, err := env.svc.Archiver.Sweep(env.ctx)
	if err != nil || again.Total() != 0 {
		t.Errorf("第二次清理应为空，实际 %+v (%v)", again, err)
	}
}

func TestAutoArchiver_MaybeSweepFromListRead(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	denied := env.createRequest(env.seedEntry(env.alice, "2024-06-03", "basic"))
	if _, err := env.svc.ChangeRequest.Deny(env.ctx, reviewer, denied.ID, ""); err != nil {
		t.Fatalf("Deny 失败: %v", err)
	}
	env.clock.Advance(8 * 24 * time.Hour)

	// 读取方取消不影响清理
	ctx, cancel := context.WithCancel(env.ctx)
	if _, _, err := env.svc.ChangeRequest.List(ctx, reviewer, &dto.ChangeRequestListRequest{}); err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	cancel()
	env.svc.Archiver.Wait()

	if s := env.request(denied.ID).Status; s != model.ChangeRequestArchived {
		t.Errorf("列表读取应顺带归档，实际 %s", s)
	}
}

func TestAutoArchiver_InProcessThrottle(t *testing.T) {
	env := newTestEnv(t)
	a := env.svc.Archiver

	if !a.acquire(env.ctx) {
		t.Fatal("首次应获得执行权")
	}
	if a.acquire(env.ctx) {
		t.Error("间隔内不应重复执行")
	}
	env.clock.Advance(2 * time.Minute)
	if !a.acquire(env.ctx) {
		t.Error("超过间隔后应再次获得执行权")
	}
}

func TestAutoArchiver_RedisLease(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, WithRedis(redis.NewClientWithRedis(rdb, zap.NewNop())))
	a := env.svc.Archiver

	if !a.acquire(env.ctx) {
		t.Fatal("首次应获得租约")
	}
	if a.acquire(env.ctx) {
		t.Error("租约未过期时不应再次获得")
	}
	if !mr.Exists(sweepLeaseKey) {
		t.Error("租约键应写入 Redis")
	}
	mr.FastForward(2 * time.Minute)
	if !a.acquire(env.ctx) {
		t.Error("租约过期后应再次获得")
	}
}
