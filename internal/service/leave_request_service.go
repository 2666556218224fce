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

// LeaveRequestService 请假申请
//
// 批准时在同一事务内按日期生成一组请假类型的变更申请（共享 bundle_id），
// 之后由审核人通过 bundle 操作逐日生效，每条各自捕获快照。
type LeaveRequestService interface {
	Create(ctx context.Context, actor dto.Actor, req *dto.CreateLeaveRequest) (*dto.LeaveRequestResponse, error)
	List(ctx context.Context, actor dto.Actor, req *dto.LeaveListRequest) ([]dto.LeaveRequestResponse, int64, error)
	Approve(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveApproveResponse, error)
	Deny(ctx context.Context, actor dto.Actor, id, reason string) (*dto.LeaveRequestResponse, error)
	// Cancel 申请人撤回自己仍待审批的请假
	Cancel(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveRequestResponse, error)
}

type leaveRequestService struct {
	*core
	bundles  *bundleService
	archiver *AutoArchiver
}

func newLeaveRequestService(c *core, bundles *bundleService, archiver *AutoArchiver) *leaveRequestService {
	return &leaveRequestService{core: c, bundles: bundles, archiver: archiver}
}

// ════════════════════════════════════════════════════════════
// Create
// ════════════════════════════════════════════════════════════

func (s *leaveRequestService) Create(ctx context.Context, actor dto.Actor, req *dto.CreateLeaveRequest) (*dto.LeaveRequestResponse, error) {
	start, err := time.Parse(model.DateLayout, req.StartDate)
	if err != nil {
		return nil, newValidationError("start_date", "日期格式应为 YYYY-MM-DD")
	}
	end, err := time.Parse(model.DateLayout, req.EndDate)
	if err != nil {
		return nil, newValidationError("end_date", "日期格式应为 YYYY-MM-DD")
	}
	if err := s.bundles.checkRange(start, end); err != nil {
		return nil, err
	}

	now := s.now()
	leave := &model.LeaveRequest{
		LeaveRequestID: model.NewID(),
		CareSpaceID:    actor.CareSpaceID,
		CarerID:        actor.ID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Reason:         req.Reason,
		Status:         model.LeavePending,
		BaseModel:      model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.repo.LeaveRequest.Create(ctx, leave); err != nil {
		s.logger.Error("创建请假申请失败", zap.Error(err))
		return nil, storageErr("创建请假申请", err)
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventLeaveRequested,
		CareSpaceID: leave.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   leave.LeaveRequestID,
	})
	resp := toLeaveRequestResponse(leave)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// List
// ════════════════════════════════════════════════════════════

func (s *leaveRequestService) List(ctx context.Context, actor dto.Actor, req *dto.LeaveListRequest) ([]dto.LeaveRequestResponse, int64, error) {
	s.archiver.MaybeSweep()

	carerID := req.CarerID
	if !actor.IsReviewer() {
		carerID = actor.ID
	}
	leaves, total, err := s.repo.LeaveRequest.List(ctx, actor.CareSpaceID, carerID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询请假列表失败", zap.Error(err))
		return nil, 0, storageErr("查询请假列表", err)
	}

	list := make([]dto.LeaveRequestResponse, 0, len(leaves))
	for i := range leaves {
		list = append(list, toLeaveRequestResponse(&leaves[i]))
	}
	return list, total, nil
}

// ════════════════════════════════════════════════════════════
// Approve：状态 + bundle，同一事务
// ════════════════════════════════════════════════════════════

func (s *leaveRequestService) Approve(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveApproveResponse, error) {
	var (
		approved *model.LeaveRequest
		bundle   *dto.BundleCreatedResponse
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		leave, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanReviewLeave(leave.Status); !g.Allowed {
			return s.rejected("review_leave", id, g, ErrAlreadyProcessed)
		}

		start, err := time.Parse(model.DateLayout, leave.StartDate)
		if err != nil {
			return newValidationError("start_date", "日期格式应为 YYYY-MM-DD")
		}
		end, err := time.Parse(model.DateLayout, leave.EndDate)
		if err != nil {
			return newValidationError("end_date", "日期格式应为 YYYY-MM-DD")
		}

		bundle, err = s.bundles.createInTx(ctx, tx, actor, bundleInput{
			CareSpaceID:  leave.CareSpaceID,
			CarerID:      leave.CarerID,
			StartDate:    start,
			EndDate:      end,
			NewShiftType: s.cfg.LeaveShiftType,
			Reason:       leave.Reason,
		})
		if err != nil {
			return err
		}

		at := s.now()
		if err := tx.LeaveRequest.Transition(ctx, id, []string{model.LeavePending}, map[string]interface{}{
			"status":      model.LeaveApproved,
			"reviewed_by": actor.ID,
			"reviewed_at": at,
			"bundle_id":   bundle.BundleID,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新请假状态")
		}

		leave.Status = model.LeaveApproved
		leave.ReviewedBy = &actor.ID
		leave.ReviewedAt = &at
		leave.BundleID = &bundle.BundleID
		leave.UpdatedAt = at
		approved = leave
		return nil
	})
	if err != nil {
		s.logFailure("批准请假失败", id, err)
		return nil, err
	}

	s.logger.Info("请假已批准",
		zap.String("leave_request_id", id),
		zap.String("bundle_id", bundle.BundleID),
		zap.Int("days", len(bundle.RequestIDs)),
	)
	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventLeaveApproved,
		CareSpaceID: approved.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
		BundleID:    bundle.BundleID,
	})
	return &dto.LeaveApproveResponse{
		LeaveRequest: toLeaveRequestResponse(approved),
		Bundle:       *bundle,
	}, nil
}

// ════════════════════════════════════════════════════════════
// Deny / Cancel
// ════════════════════════════════════════════════════════════

func (s *leaveRequestService) Deny(ctx context.Context, actor dto.Actor, id, reason string) (*dto.LeaveRequestResponse, error) {
	var denied *model.LeaveRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		leave, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanReviewLeave(leave.Status); !g.Allowed {
			return s.rejected("review_leave", id, g, ErrAlreadyProcessed)
		}

		at := s.now()
		if err := tx.LeaveRequest.Transition(ctx, id, []string{model.LeavePending}, map[string]interface{}{
			"status":      model.LeaveDenied,
			"reviewed_by": actor.ID,
			"reviewed_at": at,
			"deny_reason": reason,
			"updated_at":  at,
		}); err != nil {
			return mapStale(err, "更新请假状态")
		}

		leave.Status = model.LeaveDenied
		leave.ReviewedBy = &actor.ID
		leave.ReviewedAt = &at
		leave.DenyReason = reason
		leave.UpdatedAt = at
		denied = leave
		return nil
	})
	if err != nil {
		s.logFailure("拒绝请假失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventLeaveDenied,
		CareSpaceID: denied.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
	})
	resp := toLeaveRequestResponse(denied)
	return &resp, nil
}

func (s *leaveRequestService) Cancel(ctx context.Context, actor dto.Actor, id string) (*dto.LeaveRequestResponse, error) {
	var cancelled *model.LeaveRequest
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		leave, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if g := workflow.CanCancelLeave(leave.Status, leave.CarerID, actor.ID); !g.Allowed {
			if g.Stale {
				return s.rejected("cancel_leave", id, g, ErrAlreadyProcessed)
			}
			return s.rejected("cancel_leave", id, g, ErrForbidden)
		}

		at := s.now()
		if err := tx.LeaveRequest.Transition(ctx, id, []string{model.LeavePending}, map[string]interface{}{
			"status":     model.LeaveCancelled,
			"updated_at": at,
		}); err != nil {
			return mapStale(err, "更新请假状态")
		}

		leave.Status = model.LeaveCancelled
		leave.UpdatedAt = at
		cancelled = leave
		return nil
	})
	if err != nil {
		s.logFailure("撤回请假失败", id, err)
		return nil, err
	}

	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventLeaveWithdrawn,
		CareSpaceID: cancelled.CareSpaceID,
		ActorID:     actor.ID,
		RequestID:   id,
	})
	resp := toLeaveRequestResponse(cancelled)
	return &resp, nil
}

func (s *leaveRequestService) load(ctx context.Context, repo *repository.Repository, actor dto.Actor, id string) (*model.LeaveRequest, error) {
	leave, err := repo.LeaveRequest.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrLeaveRequestNotFound, "查询请假申请")
	}
	if !sameSpace(actor, leave.CareSpaceID) {
		return nil, ErrLeaveRequestNotFound
	}
	return leave, nil
}

func (s *leaveRequestService) logFailure(msg, id string, err error) {
	if errors.Is(err, ErrStorage) {
		s.logger.Error(msg, zap.String("leave_request_id", id), zap.Error(err))
		return
	}
	s.logger.Info(msg, zap.String("leave_request_id", id), zap.String("reason", err.Error()))
}

func toLeaveRequestResponse(l *model.LeaveRequest) dto.LeaveRequestResponse {
	resp := dto.LeaveRequestResponse{
		ID:          l.LeaveRequestID,
		CareSpaceID: l.CareSpaceID,
		CarerID:     l.CarerID,
		StartDate:   l.StartDate,
		EndDate:     l.EndDate,
		Reason:      l.Reason,
		Status:      l.Status,
		ReviewedBy:  l.ReviewedBy,
		ReviewedAt:  dto.FormatTimePtr(l.ReviewedAt),
		DenyReason:  l.DenyReason,
		BundleID:    l.BundleID,
		CreatedAt:   dto.FormatTime(l.CreatedAt),
	}
	if l.Carer != nil {
		resp.Carer = &dto.MemberBrief{ID: l.Carer.MemberID, Name: l.Carer.Name}
	}
	return resp
}
