package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
	"care-hub/backend/internal/workflow"
)

// LeaveCancellationService 已批准请假的撤销流程
//
// 撤销前先扫描同照护空间内其他护工在请假日期内的代班条目：
//   - 无冲突：立即把请假条目改回默认班次类型，不创建申请
//   - 有冲突：创建 pending 撤销申请，附带冲突代班明细，交由审核人处理
type LeaveCancellationService interface {
	RequestCancellation(ctx context.Context, actor dto.Actor, entryID string) (*dto.LeaveCancellationOutcome, error)
	Get(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error)
	List(ctx context.Context, actor dto.Actor, req *dto.LeaveCancellationListRequest) ([]dto.LeaveCancellationResponse, error)
	// Approve 同一事务内：申请 → approved、请假条目 → 默认类型、删除冲突代班
	Approve(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error)
	// Deny 仅改状态，请假保持原样
	Deny(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error)
}

type leaveCancellationService struct {
	*core
	archiver *AutoArchiver
}

func newLeaveCancellationService(c *core, archiver *AutoArchiver) *leaveCancellationService {
	return &leaveCancellationService{core: c, archiver: archiver}
}

// ════════════════════════════════════════════════════════════
// RequestCancellation
// ════════════════════════════════════════════════════════════

func (s *leaveCancellationService) RequestCancellation(ctx context.Context, actor dto.Actor, entryID string) (*dto.LeaveCancellationOutcome, error) {
	var (
		outcome *dto.LeaveCancellationOutcome
		entry   *model.TimeEntry
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		entry, err = tx.TimeEntry.GetByIDForUpdate(ctx, entryID)
		if err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "查询请假条目")
		}
		if !sameSpace(actor, entry.CareSpaceID) {
			return ErrTimeEntryNotFound
		}
		if !actor.IsReviewer() && entry.CarerID != actor.ID {
			return ErrForbidden
		}
		if entry.ShiftType != s.cfg.LeaveShiftType {
			return newValidationError("time_entry_id", ErrNotLeaveEntry.Error())
		}

		if _, err := tx.LeaveCancellation.GetPendingByEntry(ctx, entryID); err == nil {
			return ErrLeaveCancellationPending
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storageErr("查询待审批撤销申请", err)
		}

		conflicts, err := s.scanCovers(ctx, tx, entry)
		if err != nil {
			return err
		}

		at := s.now()
		if len(conflicts) == 0 {
			if err := tx.TimeEntry.UpdateFields(ctx, entryID, map[string]interface{}{
				"shift_type": s.cfg.DefaultWorkType,
				"updated_at": at,
			}); err != nil {
				return mapNotFound(err, ErrTimeEntryNotFound, "撤销请假")
			}
			outcome = &dto.LeaveCancellationOutcome{Cancelled: true}
			return nil
		}

		req := &model.LeaveCancellationRequest{
			RequestID:   model.NewID(),
			CareSpaceID: entry.CareSpaceID,
			TimeEntryID: entryID,
			RequestedBy: actor.ID,
			Conflicts:   conflicts,
			Status:      model.CancellationPending,
			BaseModel:   model.BaseModel{CreatedAt: at, UpdatedAt: at},
		}
		if err := tx.LeaveCancellation.Create(ctx, req); err != nil {
			return storageErr("创建撤销申请", err)
		}
		outcome = &dto.LeaveCancellationOutcome{
			RequestID: req.RequestID,
			Conflicts: toCoverConflictResponses(conflicts),
		}
		return nil
	})
	if err != nil {
		s.logFailure("请假撤销失败", entryID, err)
		return nil, err
	}

	if outcome.Cancelled {
		s.logger.Info("请假已立即撤销", zap.String("time_entry_id", entryID), zap.String("actor_id", actor.ID))
		s.emit(ctx, dto.WorkflowEvent{
			Type:         dto.EventLeaveCancelled,
			CareSpaceID:  entry.CareSpaceID,
			ActorID:      actor.ID,
			TimeEntryIDs: []string{entryID},
		})
		return outcome, nil
	}

	s.logger.Info("请假撤销存在代班冲突，已提交审批",
		zap.String("time_entry_id", entryID),
		zap.String("request_id", outcome.RequestID),
		zap.Int("conflicts", len(outcome.Conflicts)),
	)
	s.emit(ctx, dto.WorkflowEvent{
		Type:         dto.EventLeaveCancellationOpen,
		CareSpaceID:  entry.CareSpaceID,
		ActorID:      actor.ID,
		RequestID:    outcome.RequestID,
		TimeEntryIDs: []string{entryID},
	})
	return outcome, nil
}

// scanCovers 查找请假日期内其他护工的代班条目
func (s *leaveCancellationService) scanCovers(ctx context.Context, tx *repository.Repository, leave *model.TimeEntry) (model.CoverConflicts, error) {
	from, to := leaveDays(leave)
	covers, err := tx.TimeEntry.FindCoverConflicts(ctx, leave.CareSpaceID, leave.CarerID, s.cfg.CoverShiftType, from, to)
	if err != nil {
		return nil, storageErr("扫描代班冲突", err)
	}

	conflicts := make(model.CoverConflicts, 0, len(covers))
	for _, c := range covers {
		cc := model.CoverConflict{
			EntryID:   c.EntryID,
			CarerID:   c.CarerID,
			Date:      c.Date(),
			StartTime: c.StartAt.UTC().Format("15:04"),
			EndTime:   c.EndAt.UTC().Format("15:04"),
		}
		if c.Carer != nil {
			cc.CarerName = c.Carer.Name
		}
		conflicts = append(conflicts, cc)
	}
	return conflicts, nil
}

// leaveDays 请假条目覆盖的整日区间 [from, to)
func leaveDays(leave *model.TimeEntry) (time.Time, time.Time) {
	start := leave.StartAt.UTC()
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	last := leave.EndAt.UTC()
	if last.After(start) {
		last = last.Add(-time.Nanosecond)
	}
	to := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return from, to
}

// ════════════════════════════════════════════════════════════
// Reads
// ════════════════════════════════════════════════════════════

func (s *leaveCancellationService) Get(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error) {
	req, err := s.load(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	resp := toLeaveCancellationResponse(req)
	return &resp, nil
}

func (s *leaveCancellationService) List(ctx context.Context, actor dto.Actor, req *dto.LeaveCancellationListRequest) ([]dto.LeaveCancellationResponse, error) {
	s.archiver.MaybeSweep()

	status := req.Status
	if status == "" {
		status = model.CancellationPending
	}
	reqs, err := s.repo.LeaveCancellation.List(ctx, actor.CareSpaceID, status)
	if err != nil {
		s.logger.Error("查询撤销申请列表失败", zap.Error(err))
		return nil, storageErr("查询撤销申请列表", err)
	}

	list := make([]dto.LeaveCancellationResponse, 0, len(reqs))
	for i := range reqs {
		list = append(list, toLeaveCancellationResponse(&reqs[i]))
	}
	return list, nil
}

func (s *leaveCancellationService) load(ctx context.Context, repo *repository.Repository, actor dto.Actor, id string) (*model.LeaveCancellationRequest, error) {
	req, err := repo.LeaveCancellation.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrLeaveCancellationNotFound, "查询撤销申请")
	}
	if !sameSpace(actor, req.CareSpaceID) {
		return nil, ErrLeaveCancellationNotFound
	}
	return req, nil
}

// ════════════════════════════════════════════════════════════
// Approve / Deny
// ════════════════════════════════════════════════════════════

func (s *leaveCancellationService) Approve(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error) {
	var approved *model.LeaveCancellationRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanReviewCancellation(req.Status); !g.Allowed {
			return s.rejected("review_cancellation", id, g, ErrAlreadyProcessed)
		}

		at := s.now()
		if err := tx.LeaveCancellation.Transition(ctx, id, []string{model.CancellationPending}, map[string]interface{}{
			"status":      model.CancellationApproved,
			"reviewed_by": actor.ID,
			"reviewed_at": at,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新撤销申请状态")
		}

		if err := tx.TimeEntry.UpdateFields(ctx, req.TimeEntryID, map[string]interface{}{
			"shift_type": s.cfg.DefaultWorkType,
			"updated_at": at,
		}); err != nil {
			return mapNotFound(err, ErrTimeEntryNotFound, "撤销请假")
		}
		// 代班可能已被他人删除，按实际删除行数记录
		deleted, err := tx.TimeEntry.DeleteByIDs(ctx, req.Conflicts.EntryIDs())
		if err != nil {
			return storageErr("删除冲突代班", err)
		}
		if int(deleted) != len(req.Conflicts) {
			s.logger.Warn("部分冲突代班已不存在",
				zap.String("request_id", id),
				zap.Int("listed", len(req.Conflicts)),
				zap.Int64("deleted", deleted),
			)
		}

		req.Status = model.CancellationApproved
		req.ReviewedBy = &actor.ID
		req.ReviewedAt = &at
		req.UpdatedAt = at
		approved = req
		return nil
	})
	if err != nil {
		s.logFailure("批准请假撤销失败", id, err)
		return nil, err
	}

	s.logger.Info("请假撤销已批准", zap.String("request_id", id), zap.String("actor_id", actor.ID))
	s.emit(ctx, dto.WorkflowEvent{
		Type:         dto.EventLeaveCancellationDone,
		CareSpaceID:  approved.CareSpaceID,
		ActorID:      actor.ID,
		RequestID:    id,
		TimeEntryIDs: append([]string{approved.TimeEntryID}, approved.Conflicts.EntryIDs()...),
	})
	resp := toLeaveCancellationResponse(approved)
	return &resp, nil
}

func (s *leaveCancellationService) Deny(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveCancellationResponse, error) {
	var denied *model.LeaveCancellationRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanReviewCancellation(req.Status); !g.Allowed {
			return s.rejected("review_cancellation", id, g, ErrAlreadyProcessed)
		}

		at := s.now()
		if err := tx.LeaveCancellation.Transition(ctx, id, []string{model.CancellationPending}, map[string]interface{}{
			"status":      model.CancellationDenied,
			"reviewed_by": actor.ID,
			"reviewed_at": at,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新撤销申请状态")
		}

		req.Status = model.CancellationDenied
		req.ReviewedBy = &actor.ID
		req.ReviewedAt = &at
		req.UpdatedAt = at
		denied = req
		return nil
	})
	if err != nil {
		s.logFailure("拒绝请假撤销失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventLeaveCancellationDeny,
		CareSpaceID: denied.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
	})
	resp := toLeaveCancellationResponse(denied)
	return &resp, nil
}

func (s *leaveCancellationService) logFailure(msg, id string, err error) {
	if errors.Is(err, ErrStorage) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
		return
	}
	s.logger.Info(msg, zap.String("id", id), zap.String("reason", err.Error()))
}

// ── 转换 ──

func toCoverConflictResponses(conflicts model.CoverConflicts) []dto.CoverConflictResponse {
	list := make([]dto.CoverConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		list = append(list, dto.CoverConflictResponse{
			EntryID:   c.EntryID,
			CarerID:   c.CarerID,
			CarerName: c.CarerName,
			Date:      c.Date,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
		})
	}
	return list
}

func toLeaveCancellationResponse(r *model.LeaveCancellationRequest) dto.LeaveCancellationResponse {
	return dto.LeaveCancellationResponse{
		ID:          r.RequestID,
		CareSpaceID: r.CareSpaceID,
		TimeEntryID: r.TimeEntryID,
		RequestedBy: r.RequestedBy,
		Conflicts:   toCoverConflictResponses(r.Conflicts),
		Status:      r.Status,
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  dto.FormatTimePtr(r.ReviewedAt),
		CreatedAt:   dto.FormatTime(r.CreatedAt),
	}
}
