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
)

// BundleService 批量申请协调
//
// 一次跨日期操作按日拆成多条申请，共享同一个 bundle_id。
// 批量审批/拒绝/删除逐成员独立事务执行：某一成员失败不会中止或回滚其他成员，
// 结果以 {succeeded, failed} 如实返回；失败成员保持原状，不自动重试。
type BundleService interface {
	CreateBundle(ctx context.Context, actor dto.Actor, req *dto.CreateBundleRequest) (*dto.BundleCreatedResponse, error)
	GetBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResponse, error)
	ApproveBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResultResponse, error)
	DenyBundle(ctx context.Context, actor dto.Actor, bundleID, reason string) (*dto.BundleResultResponse, error)
	DeleteBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResultResponse, error)
}

// bundleInput 批量创建参数（请假批准复用）
type bundleInput struct {
	CareSpaceID  string
	CarerID      string
	StartDate    time.Time
	EndDate      time.Time
	NewShiftType string
	StartTime    *string
	EndTime      *string
	Reason       string
}

type bundleService struct {
	*core
	requests *changeRequestService
}

func newBundleService(c *core, requests *changeRequestService) *bundleService {
	return &bundleService{core: c, requests: requests}
}

// ════════════════════════════════════════════════════════════
// CreateBundle
// ════════════════════════════════════════════════════════════

func (s *bundleService) CreateBundle(ctx context.Context, actor dto.Actor, req *dto.CreateBundleRequest) (*dto.BundleCreatedResponse, error) {
	if !actor.IsReviewer() && req.CarerID != actor.ID {
		return nil, ErrForbidden
	}
	in, err := s.parseBundleInput(actor, req)
	if err != nil {
		return nil, err
	}

	var created *dto.BundleCreatedResponse
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		carer, err := tx.Member.GetByID(ctx, in.CarerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("carer_id", ErrMemberNotFound.Error())
		}
		if err != nil {
			return storageErr("查询护工", err)
		}
		if !sameSpace(actor, carer.CareSpaceID) {
			return newValidationError("carer_id", ErrMemberNotFound.Error())
		}
		in.CareSpaceID = carer.CareSpaceID

		created, err = s.createInTx(ctx, tx, actor, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("批量申请已创建",
		zap.String("bundle_id", created.BundleID),
		zap.Int("members", len(created.RequestIDs)),
		zap.String("actor_id", actor.ID),
	)
	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventBundleCreated,
		CareSpaceID: in.CareSpaceID,
		ActorID:     actor.ID,
		BundleID:    created.BundleID,
	})
	return created, nil
}

// parseBundleInput 校验日期区间与时间格式，在事务开启前完成
func (s *bundleService) parseBundleInput(actor dto.Actor, req *dto.CreateBundleRequest) (bundleInput, error) {
	start, err := time.Parse(model.DateLayout, req.StartDate)
	if err != nil {
		return bundleInput{}, newValidationError("start_date", "日期格式应为 YYYY-MM-DD")
	}
	end, err := time.Parse(model.DateLayout, req.EndDate)
	if err != nil {
		return bundleInput{}, newValidationError("end_date", "日期格式应为 YYYY-MM-DD")
	}
	if err := s.checkRange(start, end); err != nil {
		return bundleInput{}, err
	}
	for field, v := range map[string]*string{"start_time": req.StartTime, "end_time": req.EndTime} {
		if v == nil {
			continue
		}
		if _, err := parseClock(*v); err != nil {
			return bundleInput{}, newValidationError(field, err.Error())
		}
	}
	if req.NewShiftType == "" {
		return bundleInput{}, newValidationError("new_shift_type", "班次类型不能为空")
	}
	return bundleInput{
		CareSpaceID:  actor.CareSpaceID,
		CarerID:      req.CarerID,
		StartDate:    start,
		EndDate:      end,
		NewShiftType: req.NewShiftType,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Reason:       req.Reason,
	}, nil
}

// checkRange 起止日期顺序与单次上限
func (s *bundleService) checkRange(start, end time.Time) error {
	if end.Before(start) {
		return newValidationError("end_date", "结束日期不能早于开始日期")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > s.cfg.MaxBundleDays {
		return ErrBundleRangeTooLong
	}
	return nil
}

// createInTx 逐日保证条目存在并创建共享 bundle_id 的申请
func (s *bundleService) createInTx(ctx context.Context, tx *repository.Repository, actor dto.Actor, in bundleInput) (*dto.BundleCreatedResponse, error) {
	bundleID := model.NewID()
	out := &dto.BundleCreatedResponse{BundleID: bundleID}

	for day := in.StartDate; !day.After(in.EndDate); day = day.AddDate(0, 0, 1) {
		date := day.Format(model.DateLayout)
		entry, err := s.materializer.EnsureEntryForDate(ctx, tx, in.CareSpaceID, in.CarerID, date, actor.ID)
		if err != nil {
			return nil, err
		}

		newStart, newEnd := bundleWindow(day, entry, in.StartTime, in.EndTime)
		bid := bundleID
		req, err := s.requests.createInTx(ctx, tx, actor, createInput{
			Entry:        entry,
			NewStart:     newStart,
			NewEnd:       newEnd,
			NewShiftType: in.NewShiftType,
			Reason:       in.Reason,
			BundleID:     &bid,
		})
		if err != nil {
			return nil, err
		}
		out.RequestIDs = append(out.RequestIDs, req.RequestID)
	}
	return out, nil
}

// bundleWindow 计算某日申请的新起止时间；未指定的一端沿用条目原值
func bundleWindow(day time.Time, entry *model.TimeEntry, startTime, endTime *string) (time.Time, time.Time) {
	start, end := entry.StartAt.UTC(), entry.EndAt.UTC()
	duration := end.Sub(start)
	if startTime != nil {
		offset, _ := parseClock(*startTime)
		start = day.Add(offset)
		end = start.Add(duration)
	}
	if endTime != nil {
		offset, _ := parseClock(*endTime)
		end = day.Add(offset)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end
}

// ════════════════════════════════════════════════════════════
// GetBundle
// ════════════════════════════════════════════════════════════

func (s *bundleService) GetBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResponse, error) {
	members, err := s.members(ctx, actor, bundleID)
	if err != nil {
		return nil, err
	}
	resp := &dto.BundleResponse{
		Summary: summarizeBundle(bundleID, members),
		Members: make([]dto.ChangeRequestResponse, 0, len(members)),
	}
	for i := range members {
		resp.Members = append(resp.Members, toChangeRequestResponse(&members[i]))
	}
	return resp, nil
}

// members 读取 bundle 成员；不存在或不可见时返回 ErrBundleNotFound
func (s *bundleService) members(ctx context.Context, actor dto.Actor, bundleID string) ([]model.ChangeRequest, error) {
	members, err := bundleMembers(ctx, s.repo, actor, bundleID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrBundleNotFound
	}
	return members, nil
}

// bundleMembers 读取 bundle 中属于操作人照护空间的全部成员
// 逐条过滤，其他空间的记录既不可见也不参与批量操作
func bundleMembers(ctx context.Context, repo *repository.Repository, actor dto.Actor, bundleID string) ([]model.ChangeRequest, error) {
	all, err := repo.ChangeRequest.ListByBundle(ctx, bundleID)
	if err != nil {
		return nil, storageErr("查询批量申请成员", err)
	}
	members := all[:0]
	for _, m := range all {
		if sameSpace(actor, m.CareSpaceID) {
			members = append(members, m)
		}
	}
	return members, nil
}

// ════════════════════════════════════════════════════════════
// 批量操作：逐成员独立事务
// ════════════════════════════════════════════════════════════

func (s *bundleService) ApproveBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResultResponse, error) {
	return s.fanOut(ctx, actor, bundleID, "approve", func(id string) error {
		_, err := s.requests.Approve(ctx, actor, id)
		return err
	})
}

func (s *bundleService) DenyBundle(ctx context.Context, actor dto.Actor, bundleID, reason string) (*dto.BundleResultResponse, error) {
	return s.fanOut(ctx, actor, bundleID, "deny", func(id string) error {
		_, err := s.requests.Deny(ctx, actor, id, reason)
		return err
	})
}

func (s *bundleService) DeleteBundle(ctx context.Context, actor dto.Actor, bundleID string) (*dto.BundleResultResponse, error) {
	return s.fanOut(ctx, actor, bundleID, "delete", func(id string) error {
		return s.requests.Delete(ctx, actor, id)
	})
}

func (s *bundleService) fanOut(ctx context.Context, actor dto.Actor, bundleID, op string, apply func(id string) error) (*dto.BundleResultResponse, error) {
	members, err := s.members(ctx, actor, bundleID)
	if err != nil {
		return nil, err
	}

	result := &dto.BundleResultResponse{
		BundleID:  bundleID,
		Succeeded: make([]string, 0, len(members)),
		Failed:    make([]string, 0),
	}
	for _, m := range members {
		if err := apply(m.RequestID); err != nil {
			result.Failed = append(result.Failed, m.RequestID)
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[m.RequestID] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, m.RequestID)
	}
	result.Partial = len(result.Failed) > 0

	fields := []zap.Field{
		zap.String("bundle_id", bundleID),
		zap.String("op", op),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	}
	if result.Partial {
		s.logger.Warn("批量操作部分失败", fields...)
	} else {
		s.logger.Info("批量操作完成", fields...)
	}
	s.emit(ctx, dto.WorkflowEvent{
		Type:        dto.EventBundleProcessed,
		CareSpaceID: members[0].CareSpaceID,
		ActorID:     actor.ID,
		BundleID:    bundleID,
	})
	return result, nil
}

// summarizeBundle 以 bundle 全部成员折叠为一条：日期跨度 + 成员数 + 各状态计数
func summarizeBundle(bundleID string, members []model.ChangeRequest) dto.BundleSummary {
	summary := dto.BundleSummary{
		BundleID:     bundleID,
		MemberCount:  len(members),
		StatusCounts: make(map[string]int),
	}
	var first, last time.Time
	for i, m := range members {
		summary.StatusCounts[m.Status]++
		if i == 0 || m.NewStartAt.Before(first) {
			first = m.NewStartAt
		}
		if i == 0 || m.NewStartAt.After(last) {
			last = m.NewStartAt
		}
	}
	summary.PendingCount = summary.StatusCounts[model.ChangeRequestPending]
	if len(members) > 0 {
		summary.StartDate = first.UTC().Format(model.DateLayout)
		summary.EndDate = last.UTC().Format(model.DateLayout)
		summary.NewShiftType = members[0].NewShiftType
		summary.RequestedBy = members[0].RequestedBy
		summary.Reason = members[0].Reason
	}
	return summary
}
