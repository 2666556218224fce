package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
	"care-hub/backend/internal/workflow"
)

// ChangeRequestService 变更申请生命周期
//
// 状态: pending → applied | denied；applied → reverted | archived；
// denied / reverted → archived；pending 可物理删除。
// 所有写操作在单个事务内完成，并在事务内以条件更新复核当前状态。
// 写操作不可盲目重试：超时或结果不明时应先重新查询状态。
type ChangeRequestService interface {
	// Create 创建申请；目标为班次实例时先物化
	Create(ctx context.Context, actor dto.Actor, req *dto.CreateChangeRequestRequest) (*dto.ChangeRequestResponse, error)
	Get(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error)
	List(ctx context.Context, actor dto.Actor, req *dto.ChangeRequestListRequest) ([]dto.ChangeRequestResponse, int64, error)
	// ListPending 待审批队列，同一 bundle 折叠为一条
	ListPending(ctx context.Context, actor dto.Actor) ([]dto.PendingItem, error)
	Approve(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error)
	Deny(ctx context.Context, actor dto.Actor, id, reason string) (*dto.ChangeRequestResponse, error)
	// Revert 撤销已生效的申请；目标被修改过且未强制时返回 *ConflictError
	Revert(ctx context.Context, actor dto.Actor, id string, force bool) (*dto.ChangeRequestResponse, error)
	Archive(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error)
	Delete(ctx context.Context, actor dto.Actor, id string) error
}

// createInput 创建申请的内部参数（bundle 与请假批准共用）
type createInput struct {
	Entry        *model.TimeEntry
	NewStart     time.Time
	NewEnd       time.Time
	NewShiftType string
	Reason       string
	BundleID     *string
}

type changeRequestService struct {
	*core
	archiver *AutoArchiver
}

func newChangeRequestService(c *core, archiver *AutoArchiver) *changeRequestService {
	return &changeRequestService{core: c, archiver: archiver}
}

// ════════════════════════════════════════════════════════════
// Create
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Create(ctx context.Context, actor dto.Actor, req *dto.CreateChangeRequestRequest) (*dto.ChangeRequestResponse, error) {
	// 校验在开启事务前完成
	if !req.EditTarget.Valid() {
		return nil, newValidationError("target", "必须且只能指定 time_entry_id 或 shift_instance_id 之一")
	}
	if !req.NewStartAt.Before(req.NewEndAt) {
		return nil, newValidationError("new_end_at", "结束时间必须晚于开始时间")
	}
	if req.NewShiftType == "" {
		return nil, newValidationError("new_shift_type", "班次类型不能为空")
	}

	var created *model.ChangeRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		entry, err := s.resolveTarget(ctx, tx, actor, req.EditTarget)
		if err != nil {
			return err
		}
		if !actor.IsReviewer() && entry.CarerID != actor.ID {
			return ErrForbidden
		}
		created, err = s.createInTx(ctx, tx, actor, createInput{
			Entry:        entry,
			NewStart:     req.NewStartAt,
			NewEnd:       req.NewEndAt,
			NewShiftType: req.NewShiftType,
			Reason:       req.Reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("变更申请已创建",
		zap.String("request_id", created.RequestID),
		zap.String("time_entry_id", created.TimeEntryID),
		zap.String("actor_id", actor.ID),
	)
	s.emit(ctx, dto.WorkflowEvent{
		Type:         dto.EventChangeRequestCreated,
		CareSpaceID:  created.CareSpaceID,
		ActorID:      actor.ID,
		RequestID:    created.RequestID,
		TimeEntryIDs: []string{created.TimeEntryID},
	})
	resp := toChangeRequestResponse(created)
	return &resp, nil
}

// resolveTarget 将编辑目标统一为具体时间条目
func (s *changeRequestService) resolveTarget(ctx context.Context, tx *repository.Repository, actor dto.Actor, target dto.EditTarget) (*model.TimeEntry, error) {
	if target.IsInstance() {
		entry, _, err := s.materializer.Materialize(ctx, tx, target.ShiftInstanceID, actor.ID)
		if errors.Is(err, ErrShiftInstanceNotFound) {
			return nil, newValidationError("shift_instance_id", ErrShiftInstanceNotFound.Error())
		}
		if err != nil {
			return nil, err
		}
		if !sameSpace(actor, entry.CareSpaceID) {
			return nil, newValidationError("shift_instance_id", ErrShiftInstanceNotFound.Error())
		}
		return entry, nil
	}

	entry, err := tx.TimeEntry.GetByID(ctx, target.TimeEntryID)
	if err != nil {
		err = mapNotFound(err, ErrTimeEntryNotFound, "查询时间条目")
		if errors.Is(err, ErrTimeEntryNotFound) {
			return nil, newValidationError("time_entry_id", ErrTimeEntryNotFound.Error())
		}
		return nil, err
	}
	if !sameSpace(actor, entry.CareSpaceID) {
		return nil, newValidationError("time_entry_id", ErrTimeEntryNotFound.Error())
	}
	return entry, nil
}

// createInTx 在给定事务内写入 pending 申请
func (s *changeRequestService) createInTx(ctx context.Context, tx *repository.Repository, actor dto.Actor, in createInput) (*model.ChangeRequest, error) {
	now := s.now()
	req := &model.ChangeRequest{
		RequestID:    model.NewID(),
		CareSpaceID:  in.Entry.CareSpaceID,
		TimeEntryID:  in.Entry.EntryID,
		RequestedBy:  actor.ID,
		NewStartAt:   in.NewStart.UTC().Truncate(time.Microsecond),
		NewEndAt:     in.NewEnd.UTC().Truncate(time.Microsecond),
		NewShiftType: in.NewShiftType,
		Reason:       in.Reason,
		Status:       model.ChangeRequestPending,
		BundleID:     in.BundleID,
		BaseModel:    model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := tx.ChangeRequest.Create(ctx, req); err != nil {
		return nil, storageErr("创建变更申请", err)
	}
	return req, nil
}

// ════════════════════════════════════════════════════════════
// Reads
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Get(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error) {
	req, err := s.load(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	resp := toChangeRequestResponse(req)
	return &resp, nil
}

func (s *changeRequestService) List(ctx context.Context, actor dto.Actor, req *dto.ChangeRequestListRequest) ([]dto.ChangeRequestResponse, int64, error) {
	s.archiver.MaybeSweep()

	filter := repository.ChangeRequestFilter{
		CareSpaceID: actor.CareSpaceID,
		Status:      req.Status,
		TimeEntryID: req.TimeEntryID,
		BundleID:    req.BundleID,
	}
	if req.Mine || !actor.IsReviewer() {
		filter.RequestedBy = actor.ID
	}

	reqs, total, err := s.repo.ChangeRequest.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更申请列表失败", zap.Error(err))
		return nil, 0, storageErr("查询变更申请列表", err)
	}

	list := make([]dto.ChangeRequestResponse, 0, len(reqs))
	for i := range reqs {
		list = append(list, toChangeRequestResponse(&reqs[i]))
	}
	return list, total, nil
}

func (s *changeRequestService) ListPending(ctx context.Context, actor dto.Actor) ([]dto.PendingItem, error) {
	s.archiver.MaybeSweep()

	reqs, err := s.repo.ChangeRequest.ListPending(ctx, actor.CareSpaceID)
	if err != nil {
		s.logger.Error("查询待审批申请失败", zap.Error(err))
		return nil, storageErr("查询待审批申请", err)
	}

	// 仍有待审成员的 bundle 折叠为一条，概要按全部成员计算
	items := make([]dto.PendingItem, 0, len(reqs))
	seen := make(map[string]bool)
	for i := range reqs {
		r := &reqs[i]
		if r.BundleID == nil {
			resp := toChangeRequestResponse(r)
			items = append(items, dto.PendingItem{Kind: dto.PendingKindSingle, Request: &resp})
			continue
		}
		bid := *r.BundleID
		if seen[bid] {
			continue
		}
		seen[bid] = true

		members, err := bundleMembers(ctx, s.repo, actor, bid)
		if err != nil {
			s.logger.Error("查询批量申请成员失败", zap.String("bundle_id", bid), zap.Error(err))
			return nil, err
		}
		summary := summarizeBundle(bid, members)
		items = append(items, dto.PendingItem{Kind: dto.PendingKindBundle, Bundle: &summary})
	}
	return items, nil
}

// load 读取申请并校验照护空间
func (s *changeRequestService) load(ctx context.Context, repo *repository.Repository, actor dto.Actor, id string) (*model.ChangeRequest, error) {
	req, err := repo.ChangeRequest.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrChangeRequestNotFound, "查询变更申请")
	}
	if !sameSpace(actor, req.CareSpaceID) {
		return nil, ErrChangeRequestNotFound
	}
	return req, nil
}

// loadForUpdate 事务内加锁读取申请
func (s *changeRequestService) loadForUpdate(ctx context.Context, tx *repository.Repository, actor dto.Actor, id string) (*model.ChangeRequest, error) {
	req, err := tx.ChangeRequest.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrChangeRequestNotFound, "查询变更申请")
	}
	if !sameSpace(actor, req.CareSpaceID) {
		return nil, ErrChangeRequestNotFound
	}
	return req, nil
}

// ════════════════════════════════════════════════════════════
// Approve：快照 + 状态 + 条目写入，同一事务
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Approve(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error) {
	var approved *model.ChangeRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.loadForUpdate(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanApprove(req.Status); !g.Allowed {
			return s.rejected("approve", id, g, ErrAlreadyProcessed)
		}

		entry, err := tx.TimeEntry.GetByIDForUpdate(ctx, req.TimeEntryID)
		if err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "查询目标条目")
		}

		at := s.now()
		snap := s.snapshots.Capture(entry, at)

		// 1. 以条件更新认领 pending → applied，并写入快照
		if err := tx.ChangeRequest.Transition(ctx, id, workflow.SourcesOf(model.ChangeRequestApplied), map[string]interface{}{
			"status":     model.ChangeRequestApplied,
			"snapshot":   snap,
			"applied_by": actor.ID,
			"applied_at": at,
			"updated_at": at,
		}); err != nil {
			return mapStale(err, "更新申请状态")
		}

		// 2. 写入新值；updated_at 与 applied_at 相同，作为冲突检测基准
		if err := tx.TimeEntry.UpdateFields(ctx, entry.EntryID, map[string]interface{}{
			"start_at":   req.NewStartAt,
			"end_at":     req.NewEndAt,
			"shift_type": req.NewShiftType,
			"updated_at": at,
		}); err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "写入目标条目")
		}

		req.Status = model.ChangeRequestApplied
		req.Snapshot = snap
		req.AppliedBy = &actor.ID
		req.AppliedAt = &at
		req.UpdatedAt = at
		approved = req
		return nil
	})
	if err != nil {
		s.logFailure("批准变更申请失败", id, err)
		return nil, err
	}

	s.logger.Info("变更申请已生效", zap.String("request_id", id), zap.String("actor_id", actor.ID))
	s.emit(ctx, dto.WorkflowEvent{
		Type:         dto.EventChangeRequestApplied,
		CareSpaceID:  approved.CareSpaceID,
		ActorID:      actor.ID,
		RequestID:    id,
		BundleID:     deref(approved.BundleID),
		TimeEntryIDs: []string{approved.TimeEntryID},
	})
	resp := toChangeRequestResponse(approved)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Deny
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Deny(ctx context.Context, actor dto.Actor, id, reason string) (*dto.ChangeRequestResponse, error) {
	var denied *model.ChangeRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.loadForUpdate(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanDeny(req.Status); !g.Allowed {
			return s.rejected("deny", id, g, ErrAlreadyProcessed)
		}

		at := s.now()
		if err := tx.ChangeRequest.Transition(ctx, id, []string{model.ChangeRequestPending}, map[string]interface{}{
			"status":      model.ChangeRequestDenied,
			"denied_by":   actor.ID,
			"denied_at":   at,
			"deny_reason": reason,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新申请状态")
		}

		req.Status = model.ChangeRequestDenied
		req.DeniedBy = &actor.ID
		req.DeniedAt = &at
		req.DenyReason = reason
		req.UpdatedAt = at
		denied = req
		return nil
	})
	if err != nil {
		s.logFailure("拒绝变更申请失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventChangeRequestDenied,
		CareSpaceID: denied.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
		BundleID:    deref(denied.BundleID),
	})
	resp := toChangeRequestResponse(denied)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Revert：冲突检测后还原快照
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Revert(ctx context.Context, actor dto.Actor, id string, force bool) (*dto.ChangeRequestResponse, error) {
	var reverted *model.ChangeRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.loadForUpdate(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if req.Status != model.ChangeRequestApplied {
			return ErrAlreadyProcessed
		}

		entry, err := tx.TimeEntry.GetByIDForUpdate(ctx, req.TimeEntryID)
		if err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "查询目标条目")
		}

		check := s.detector.Check(req, entry)
		g := workflow.CanRevert(workflow.RevertContext{
			Status:      req.Status,
			HasSnapshot: req.HasSnapshot(),
			Conflict:    check.Conflict,
			Force:       force,
		})
		if !g.Allowed {
			if check.Conflict && !force {
				return s.rejected("revert", id, g, check.Err())
			}
			return s.rejected("revert", id, g, ErrInvalidTransition)
		}
		if check.Conflict {
			s.logger.Warn("强制撤销覆盖了后续修改",
				zap.String("request_id", id),
				zap.Time("applied_at", check.AppliedAt),
				zap.Time("modified_at", check.ModifiedAt),
			)
		}

		at := s.now()
		if err := tx.ChangeRequest.Transition(ctx, id, workflow.SourcesOf(model.ChangeRequestReverted), map[string]interface{}{
			"status":      model.ChangeRequestReverted,
			"reverted_by": actor.ID,
			"reverted_at": at,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新申请状态")
		}
		if err := tx.TimeEntry.UpdateFields(ctx, entry.EntryID, s.snapshots.Restore(req.Snapshot, at)); err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "还原目标条目")
		}

		req.Status = model.ChangeRequestReverted
		req.RevertedBy = &actor.ID
		req.RevertedAt = &at
		req.UpdatedAt = at
		reverted = req
		return nil
	})
	if err != nil {
		s.logFailure("撤销变更申请失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:         dto.EventChangeRequestReverted,
		CareSpaceID:  reverted.CareSpaceID,
		ActorID:      actor.ID,
		RequestID:    id,
		BundleID:     deref(reverted.BundleID),
		TimeEntryIDs: []string{reverted.TimeEntryID},
	})
	resp := toChangeRequestResponse(reverted)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Archive / Delete
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Archive(ctx context.Context, actor dto.Actor, id string) (*dto.ChangeRequestResponse, error) {
	var archived *model.ChangeRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.loadForUpdate(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanArchive(req.Status); !g.Allowed {
			if g.Stale {
				return s.rejected("archive", id, g, ErrAlreadyProcessed)
			}
			return s.rejected("archive", id, g, ErrInvalidTransition)
		}

		at := s.now()
		if err := tx.ChangeRequest.Transition(ctx, id, workflow.SourcesOf(model.ChangeRequestArchived), map[string]interface{}{
			"status":      model.ChangeRequestArchived,
			"archived_by": actor.ID,
			"archived_at": at,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新申请状态")
		}

		req.Status = model.ChangeRequestArchived
		req.ArchivedBy = &actor.ID
		req.ArchivedAt = &at
		req.UpdatedAt = at
		archived = req
		return nil
	})
	if err != nil {
		s.logFailure("归档变更申请失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventChangeRequestArchived,
		CareSpaceID: archived.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
	})
	resp := toChangeRequestResponse(archived)
	return &resp, nil
}

// Delete 只能删除 pending 申请；以影响行数判定并发，而非先读后删
func (s *changeRequestService) Delete(ctx context.Context, actor dto.Actor, id string) error {
	req, err := s.load(ctx, s.repo, actor, id)
	if err != nil {
		return err
	}
	if !actor.IsReviewer() && req.RequestedBy != actor.ID {
		return ErrForbidden
	}
	if g := workflow.CanDelete(req.Status); !g.Allowed {
		return s.rejected("delete", id, g, ErrAlreadyProcessed)
	}

	// 读取与删除之间仍可能被审批，以条件删除兜底
	if err := s.repo.ChangeRequest.DeletePending(ctx, id); err != nil {
		err = mapStale(err, "删除变更申请")
		s.logFailure("删除变更申请失败", id, err)
		return err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventChangeRequestDeleted,
		CareSpaceID: req.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
		BundleID:    deref(req.BundleID),
	})
	return nil
}

// logFailure 存储异常记 Error，业务拒绝记 Info
func (s *changeRequestService) logFailure(msg, id string, err error) {
	if errors.Is(err, ErrStorage) {
		s.logger.Error(msg, zap.String("request_id", id), zap.Error(err))
		return
	}
	s.logger.Info(msg, zap.String("request_id", id), zap.String("reason", err.Error()))
}

// ── 转换 ──

func toChangeRequestResponse(r *model.ChangeRequest) dto.ChangeRequestResponse {
	resp := dto.ChangeRequestResponse{
		ID:           r.RequestID,
		CareSpaceID:  r.CareSpaceID,
		TimeEntryID:  r.TimeEntryID,
		RequestedBy:  r.RequestedBy,
		NewStartAt:   dto.FormatTime(r.NewStartAt),
		NewEndAt:     dto.FormatTime(r.NewEndAt),
		NewShiftType: r.NewShiftType,
		Reason:       r.Reason,
		Status:       r.Status,
		BundleID:     r.BundleID,
		AppliedBy:    r.AppliedBy,
		AppliedAt:    dto.FormatTimePtr(r.AppliedAt),
		DeniedBy:     r.DeniedBy,
		DeniedAt:     dto.FormatTimePtr(r.DeniedAt),
		DenyReason:   r.DenyReason,
		RevertedBy:   r.RevertedBy,
		RevertedAt:   dto.FormatTimePtr(r.RevertedAt),
		ArchivedBy:   r.ArchivedBy,
		ArchivedAt:   dto.FormatTimePtr(r.ArchivedAt),
		CreatedAt:    dto.FormatTime(r.CreatedAt),
		UpdatedAt:    dto.FormatTime(r.UpdatedAt),
	}
	if r.HasSnapshot() {
		resp.Snapshot = &dto.SnapshotResponse{
			StartAt:    dto.FormatTime(r.Snapshot.StartAt),
			EndAt:      dto.FormatTime(r.Snapshot.EndAt),
			ShiftType:  r.Snapshot.ShiftType,
			Notes:      r.Snapshot.Notes,
			CapturedAt: dto.FormatTime(r.Snapshot.CapturedAt),
		}
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
