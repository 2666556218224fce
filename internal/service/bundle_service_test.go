package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
)

func TestBundle_Create_Validation(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	tests := []struct {
		name string
		req  dto.CreateBundleRequest
		want error
	}{
		{"日期格式错误", dto.CreateBundleRequest{CarerID: env.alice.MemberID, StartDate: "2024/07/01", EndDate: "2024-07-02", NewShiftType: "leave"}, ErrValidation},
		{"结束早于开始", dto.CreateBundleRequest{CarerID: env.alice.MemberID, StartDate: "2024-07-05", EndDate: "2024-07-01", NewShiftType: "leave"}, ErrValidation},
		{"超出上限", dto.CreateBundleRequest{CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-09-01", NewShiftType: "leave"}, ErrBundleRangeTooLong},
		{"时间格式错误", dto.CreateBundleRequest{CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-01", NewShiftType: "leave", StartTime: strPtr("25:00")}, ErrValidation},
		{"护工不存在", dto.CreateBundleRequest{CarerID: model.NewID(), StartDate: "2024-07-01", EndDate: "2024-07-01", NewShiftType: "leave"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}

	// 护工不能替他人创建
	_, err := env.svc.Bundle.CreateBundle(env.ctx, env.actor(env.alice), &dto.CreateBundleRequest{
		CarerID: env.bob.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-01", NewShiftType: "leave",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("期望 ErrForbidden，实际: %v", err)
	}
}

func TestBundle_Create_UsesExistingEntriesAndInstances(t *testing.T) {
	env := newTestEnv(t)
	existing := env.seedEntry(env.alice, "2024-07-01", "basic")
	inst := env.seedInstance(env.alice, "2024-07-02", strPtr("07:00"), strPtr("15:00"))

	created, err := env.svc.Bundle.CreateBundle(env.ctx, env.actor(env.alice), &dto.CreateBundleRequest{
		CarerID:      env.alice.MemberID,
		StartDate:    "2024-07-01",
		EndDate:      "2024-07-03",
		NewShiftType: "cover",
		StartTime:    strPtr("22:00"),
		EndTime:      strPtr("06:00"),
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}
	if len(created.RequestIDs) != 3 {
		t.Fatalf("期望 3 个成员，实际 %d", len(created.RequestIDs))
	}

	first := env.request(created.RequestIDs[0])
	if first.TimeEntryID != existing.EntryID {
		t.Error("已有条目的日期应直接引用该条目")
	}
	if want := time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC); !first.NewStartAt.Equal(want) {
		t.Errorf("新开始时间应为 %v，实际 %v", want, first.NewStartAt)
	}
	if want := time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC); !first.NewEndAt.Equal(want) {
		t.Errorf("跨夜结束时间应为 %v，实际 %v", want, first.NewEndAt)
	}

	second := env.entry(env.request(created.RequestIDs[1]).TimeEntryID)
	if second.ShiftInstanceID == nil || *second.ShiftInstanceID != inst.InstanceID {
		t.Error("有班次实例的日期应先物化实例")
	}

	third := env.entry(env.request(created.RequestIDs[2]).TimeEntryID)
	if third.ShiftInstanceID != nil || third.ShiftType != "basic" || third.StartAt.Hour() != 9 {
		t.Errorf("无记录的日期应按默认时段新建条目，实际 %+v", third)
	}

	for _, id := range created.RequestIDs {
		if r := env.request(id); r.BundleID == nil || *r.BundleID != created.BundleID {
			t.Errorf("成员 %s 应共享 bundle_id", id)
		}
	}
}

func TestBundle_ApproveIndependence(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	created, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &dto.CreateBundleRequest{
		CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-03", NewShiftType: "cover",
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}
	ids := created.RequestIDs

	// 成员 2 的目标被带外删除
	second := env.request(ids[1])
	if _, err := env.repo.TimeEntry.DeleteByIDs(env.ctx, []string{second.TimeEntryID}); err != nil {
		t.Fatalf("删除条目失败: %v", err)
	}

	result, err := env.svc.Bundle.ApproveBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("ApproveBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 2 || result.Succeeded[0] != ids[0] || result.Succeeded[1] != ids[2] {
		t.Errorf("期望成功 [1,3]，实际 %v", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0] != ids[1] {
		t.Errorf("期望失败 [2]，实际 %v", result.Failed)
	}
	if !result.Partial || result.Errors[ids[1]] == "" {
		t.Error("部分失败应标记 partial 并给出原因")
	}

	for _, id := range []string{ids[0], ids[2]} {
		r := env.request(id)
		if r.Status != model.ChangeRequestApplied || !r.HasSnapshot() {
			t.Errorf("成员 %s 应完整生效", id)
		}
		if env.entry(r.TimeEntryID).ShiftType != "cover" {
			t.Errorf("成员 %s 的条目应写入新类型", id)
		}
	}
	if r := env.request(ids[1]); r.Status != model.ChangeRequestPending {
		t.Errorf("失败成员应保持 pending，实际 %s", r.Status)
	}
	if !env.events.has(dto.EventBundleProcessed) {
		t.Error("应发出 bundle.processed 事件")
	}
}

func TestBundle_DenyAndDelete(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	created, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &dto.CreateBundleRequest{
		CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-02", NewShiftType: "leave",
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}
	// 成员 1 先被单独批准
	if _, err := env.svc.ChangeRequest.Approve(env.ctx, reviewer, created.RequestIDs[0]); err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}

	result, err := env.svc.Bundle.DenyBundle(env.ctx, reviewer, created.BundleID, "不批准")
	if err != nil {
		t.Fatalf("DenyBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != created.RequestIDs[1] {
		t.Errorf("期望仅成员 2 被拒绝，实际 %v", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0] != created.RequestIDs[0] {
		t.Errorf("已生效成员应报告失败，实际 %v", result.Failed)
	}

	got, err := env.svc.Bundle.GetBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("GetBundle 失败: %v", err)
	}
	if got.Summary.StatusCounts[model.ChangeRequestApplied] != 1 || got.Summary.StatusCounts[model.ChangeRequestDenied] != 1 {
		t.Errorf("状态计数不符: %v", got.Summary.StatusCounts)
	}

	// 全部不可删除
	del, err := env.svc.Bundle.DeleteBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("DeleteBundle 失败: %v", err)
	}
	if len(del.Succeeded) != 0 || len(del.Failed) != 2 {
		t.Errorf("非 pending 成员删除应全部失败，实际 %+v", del)
	}
}

func TestBundle_DeletePending(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)
	created, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &dto.CreateBundleRequest{
		CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-02", NewShiftType: "leave",
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}

	result, err := env.svc.Bundle.DeleteBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("DeleteBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 2 || result.Partial {
		t.Errorf("期望全部删除，实际 %+v", result)
	}
	if _, err := env.svc.Bundle.GetBundle(env.ctx, reviewer, created.BundleID); !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("删除后应返回 ErrBundleNotFound，实际: %v", err)
	}
}

func TestBundle_CreateIgnoresClientBundleID(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	created, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &dto.CreateBundleRequest{
		CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-03", NewShiftType: "cover",
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}

	// 单条创建的请求体里夹带已有的 bundle_id
	bobEntry := env.seedEntry(env.bob, "2024-07-02", "basic")
	payload := fmt.Sprintf(`{"time_entry_id":%q,"new_start_at":"2024-07-02T07:00:00Z","new_end_at":"2024-07-02T15:00:00Z","new_shift_type":"leave","bundle_id":%q}`,
		bobEntry.EntryID, created.BundleID)
	var req dto.CreateChangeRequestRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("解析请求体失败: %v", err)
	}
	single, err := env.svc.ChangeRequest.Create(env.ctx, env.actor(env.bob), &req)
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if single.BundleID != nil {
		t.Errorf("单条申请不应归入 bundle，实际 %s", *single.BundleID)
	}
	if r := env.request(single.ID); r.BundleID != nil {
		t.Errorf("存储的单条申请不应带 bundle_id，实际 %s", *r.BundleID)
	}

	got, err := env.svc.Bundle.GetBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("GetBundle 失败: %v", err)
	}
	if got.Summary.MemberCount != 3 {
		t.Errorf("bundle 成员数应保持 3，实际 %d", got.Summary.MemberCount)
	}

	result, err := env.svc.Bundle.ApproveBundle(env.ctx, reviewer, created.BundleID)
	if err != nil {
		t.Fatalf("ApproveBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 3 || result.Partial {
		t.Errorf("期望 3 个成员全部成功，实际 %+v", result)
	}
	if r := env.request(single.ID); r.Status != model.ChangeRequestPending {
		t.Errorf("批量审批不应波及单条申请，实际 %s", r.Status)
	}
	if e := env.entry(bobEntry.EntryID); e.ShiftType != "basic" {
		t.Errorf("单条申请的目标条目不应被修改，实际 %s", e.ShiftType)
	}
}

func TestBundle_ForeignCareSpaceMembersIgnored(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	created, err := env.svc.Bundle.CreateBundle(env.ctx, reviewer, &dto.CreateBundleRequest{
		CarerID: env.alice.MemberID, StartDate: "2024-07-01", EndDate: "2024-07-03", NewShiftType: "cover",
	})
	if err != nil {
		t.Fatalf("CreateBundle 失败: %v", err)
	}

	// 其他照护空间的记录使用同一 bundle_id，且排序在最前
	const otherSpace = "22222222-2222-2222-2222-222222222222"
	now := env.clock.Now()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	foreignEntry := &model.TimeEntry{
		EntryID:     model.NewID(),
		CareSpaceID: otherSpace,
		CarerID:     model.NewID(),
		StartAt:     start,
		EndAt:       start.Add(8 * time.Hour),
		ShiftType:   "basic",
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := env.repo.TimeEntry.Create(env.ctx, foreignEntry); err != nil {
		t.Fatalf("创建条目失败: %v", err)
	}
	bundleID := created.BundleID
	foreign := &model.ChangeRequest{
		RequestID:    model.NewID(),
		CareSpaceID:  otherSpace,
		TimeEntryID:  foreignEntry.EntryID,
		RequestedBy:  foreignEntry.CarerID,
		NewStartAt:   start.Add(time.Hour),
		NewEndAt:     start.Add(9 * time.Hour),
		NewShiftType: "cover",
		Status:       model.ChangeRequestPending,
		BundleID:     &bundleID,
		BaseModel:    model.BaseModel{CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
	}
	if err := env.repo.ChangeRequest.Create(env.ctx, foreign); err != nil {
		t.Fatalf("创建变更申请失败: %v", err)
	}

	got, err := env.svc.Bundle.GetBundle(env.ctx, reviewer, bundleID)
	if err != nil {
		t.Fatalf("GetBundle 失败: %v", err)
	}
	if got.Summary.MemberCount != 3 || got.Summary.StartDate != "2024-07-01" {
		t.Errorf("只应看到本空间的 3 个成员，实际 %+v", got.Summary)
	}
	for _, m := range got.Members {
		if m.ID == foreign.RequestID {
			t.Error("其他空间的申请不应出现在成员列表中")
		}
	}

	result, err := env.svc.Bundle.ApproveBundle(env.ctx, reviewer, bundleID)
	if err != nil {
		t.Fatalf("ApproveBundle 失败: %v", err)
	}
	if len(result.Succeeded) != 3 || result.Partial {
		t.Errorf("期望 3 个成员全部成功，实际 %+v", result)
	}
	if r := env.request(foreign.RequestID); r.Status != model.ChangeRequestPending {
		t.Errorf("其他空间的申请应保持 pending，实际 %s", r.Status)
	}
}

