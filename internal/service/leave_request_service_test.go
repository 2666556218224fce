package service

import (
	"errors"
	"testing"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
)

// 2024-07-01..05 五天请假，事先没有任何条目 → 一个 bundle、五条申请，逐条生效并各自快照
func TestLeaveRequest_ApproveCreatesBundle(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	leave, err := env.svc.LeaveRequest.Create(env.ctx, env.actor(env.alice), &dto.CreateLeaveRequest{
		StartDate: "2024-07-01", EndDate: "2024-07-05", Reason: "探亲",
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if leave.Status != model.LeavePending || leave.CarerID != env.alice.MemberID {
		t.Errorf("新请假应为本人 pending，实际 %+v", leave)
	}

	approved, err := env.svc.LeaveRequest.Approve(env.ctx, reviewer, leave.ID)
	if err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}
	if approved.LeaveRequest.Status != model.LeaveApproved || approved.LeaveRequest.BundleID == nil ||
		*approved.LeaveRequest.BundleID != approved.Bundle.BundleID {
		t.Errorf("请假应记录生成的 bundle，实际 %+v", approved.LeaveRequest)
	}
	if len(approved.Bundle.RequestIDs) != 5 {
		t.Fatalf("期望 5 条申请，实际 %d", len(approved.Bundle.RequestIDs))
	}

	bundle, err := env.svc.Bundle.GetBundle(env.ctx, reviewer, approved.Bundle.BundleID)
	if err != nil {
		t.Fatalf("GetBundle 失败: %v", err)
	}
	if bundle.Summary.StartDate != "2024-07-01" || bundle.Summary.EndDate != "2024-07-05" || bundle.Summary.MemberCount != 5 {
		t.Errorf("bundle 概要不符: %+v", bundle.Summary)
	}
	entryIDs := make(map[string]bool)
	for _, m := range bundle.Members {
		if m.BundleID == nil || *m.BundleID != approved.Bundle.BundleID || m.NewShiftType != "leave" || m.Status != model.ChangeRequestPending {
			t.Errorf("成员不符: %+v", m)
		}
		entryIDs[m.TimeEntryID] = true
	}
	if len(entryIDs) != 5 {
		t.Errorf("每天应对应独立条目，实际 %d 个", len(entryIDs))
	}

	result, err := env.svc.Bundle.ApproveBundle(env.ctx, reviewer, approved.Bundle.BundleID)
	if err != nil {
		t.Fatalf("ApproveBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 5 || result.Partial {
		t.Fatalf("期望全部生效，实际 %+v", result)
	}
	for _, id := range approved.Bundle.RequestIDs {
		r := env.request(id)
		if !r.HasSnapshot() || r.Snapshot.ShiftType != "basic" {
			t.Errorf("成员 %s 应各自捕获快照，实际 %+v", id, r.Snapshot)
		}
		if env.entry(r.TimeEntryID).ShiftType != "leave" {
			t.Errorf("成员 %s 的条目应变为 leave", id)
		}
	}
}

func TestLeaveRequest_DenyAndCancel(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	first, err := env.svc.LeaveRequest.Create(env.ctx, env.actor(env.alice), &dto.CreateLeaveRequest{StartDate: "2024-08-01", EndDate: "2024-08-02"})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	denied, err := env.svc.LeaveRequest.Deny(env.ctx, reviewer, first.ID, "人手不足")
	if err != nil {
		t.Fatalf("Deny 失败: %v", err)
	}
	if denied.Status != model.LeaveDenied || denied.DenyReason != "人手不足" {
		t.Errorf("期望 denied，实际 %+v", denied)
	}
	if _, err := env.svc.LeaveRequest.Approve(env.ctx, reviewer, first.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("已拒绝请假再批准应返回 ErrAlreadyProcessed，实际: %v", err)
	}

	second, err := env.svc.LeaveRequest.Create(env.ctx, env.actor(env.alice), &dto.CreateLeaveRequest{StartDate: "2024-08-05", EndDate: "2024-08-05"})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if _, err := env.svc.LeaveRequest.Cancel(env.ctx, env.actor(env.bob), second.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("他人撤回应返回 ErrForbidden，实际: %v", err)
	}
	cancelled, err := env.svc.LeaveRequest.Cancel(env.ctx, env.actor(env.alice), second.ID)
	if err != nil {
		t.Fatalf("Cancel 失败: %v", err)
	}
	if cancelled.Status != model.LeaveCancelled {
		t.Errorf("期望 cancelled，实际 %s", cancelled.Status)
	}
	if _, err := env.svc.LeaveRequest.Cancel(env.ctx, env.actor(env.alice), second.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("重复撤回应返回 ErrAlreadyProcessed，实际: %v", err)
	}

	// 护工只看到自己的请假
	list, total, err := env.svc.LeaveRequest.List(env.ctx, env.actor(env.bob), &dto.LeaveListRequest{})
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("Bob 不应看到 Alice 的请假，实际 %d (%v)", total, err)
	}
	all, total, err := env.svc.LeaveRequest.List(env.ctx, reviewer, &dto.LeaveListRequest{})
	if err != nil || total != 2 || len(all) != 2 {
		t.Errorf("审核人应看到全部 2 条，实际 %d (%v)", total, err)
	}
}

func TestLeaveRequest_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.actor(env.alice)

	if _, err := env.svc.LeaveRequest.Create(env.ctx, alice, &dto.CreateLeaveRequest{StartDate: "2024-08-05", EndDate: "2024-08-01"}); !errors.Is(err, ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
	if _, err := env.svc.LeaveRequest.Create(env.ctx, alice, &dto.CreateLeaveRequest{StartDate: "2024-08-01", EndDate: "2024-12-01"}); !errors.Is(err, ErrBundleRangeTooLong) {
		t.Errorf("期望 ErrBundleRangeTooLong，实际: %v", err)
	}
	if _, err := env.svc.LeaveRequest.Approve(env.ctx, env.actor(env.reviewer), model.NewID()); !errors.Is(err, ErrLeaveRequestNotFound) {
		t.Errorf("期望 ErrLeaveRequestNotFound，实际: %v", err)
	}
}
