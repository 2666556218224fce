package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
)

// TimeEntryService 时间条目读取与实例物化
type TimeEntryService interface {
	// Materialize 幂等：重复调用返回同一条目
	Materialize(ctx context.Context, actor dto.Actor, instanceID string) (*dto.MaterializeResponse, error)
	Get(ctx context.Context, actor dto.Actor, id string) (*dto.TimeEntryResponse, error)
	// ListRange 日历区间读取，无副作用
	ListRange(ctx context.Context, actor dto.Actor, req *dto.TimeEntryListRequest) ([]dto.TimeEntryResponse, error)
}

type timeEntryService struct {
	*core
}

func newTimeEntryService(c *core) *timeEntryService {
	return &timeEntryService{core: c}
}

func (s *timeEntryService) Materialize(ctx context.Context, actor dto.Actor, instanceID string) (*dto.MaterializeResponse, error) {
	var (
		entry   *model.TimeEntry
		created bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		inst, err := tx.ShiftInstance.GetByID(ctx, instanceID)
		if err != nil {
			return mapNotFound(err, ErrShiftInstanceNotFound, "查询班次实例")
		}
		if inst.Template != nil && !sameSpace(actor, inst.Template.CareSpaceID) {
			return ErrShiftInstanceNotFound
		}
		entry, created, err = s.materializer.Materialize(ctx, tx, instanceID, actor.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStorage) || !isDomainError(err) {
			s.logger.Error("物化班次实例失败", zap.String("instance_id", instanceID), zap.Error(err))
		}
		return nil, err
	}

	if created {
		s.emit(ctx, dto.WorkflowEvent{
			Type:         dto.EventInstanceMaterialized,
			CareSpaceID:  entry.CareSpaceID,
			ActorID:      actor.ID,
			TimeEntryIDs: []string{entry.EntryID},
		})
	}
	return &dto.MaterializeResponse{TimeEntryID: entry.EntryID, Created: created}, nil
}

func (s *timeEntryService) Get(ctx context.Context, actor dto.Actor, id string) (*dto.TimeEntryResponse, error) {
	entry, err := s.repo.TimeEntry.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTimeEntryNotFound, "查询时间条目")
	}
	if !sameSpace(actor, entry.CareSpaceID) {
		return nil, ErrTimeEntryNotFound
	}
	resp := toTimeEntryResponse(entry)
	return &resp, nil
}

func (s *timeEntryService) ListRange(ctx context.Context, actor dto.Actor, req *dto.TimeEntryListRequest) ([]dto.TimeEntryResponse, error) {
	from, to, err := parseDateRange(req.From, req.To, s.cfg.MaxBundleDays*3)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.TimeEntry.ListRange(ctx, repository.TimeEntryFilter{
		CareSpaceID: actor.CareSpaceID,
		CarerID:     req.CarerID,
		From:        from,
		To:          to,
	})
	if err != nil {
		s.logger.Error("查询日历区间失败", zap.Error(err))
		return nil, storageErr("查询日历区间", err)
	}

	list := make([]dto.TimeEntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, toTimeEntryResponse(&entries[i]))
	}
	return list, nil
}

// parseDateRange 解析闭区间 [from, to] 为 [from, to+1d)，maxDays 为区间上限
func parseDateRange(fromStr, toStr string, maxDays int) (time.Time, time.Time, error) {
	from, err := time.Parse(model.DateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("from", "日期格式应为 YYYY-MM-DD")
	}
	to, err := time.Parse(model.DateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("to", "日期格式应为 YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, newValidationError("to", "结束日期不能早于开始日期")
	}
	if maxDays > 0 && int(to.Sub(from).Hours()/24)+1 > maxDays {
		return time.Time{}, time.Time{}, newValidationError("to", "查询区间过长")
	}
	return from, to.AddDate(0, 0, 1), nil
}

func toTimeEntryResponse(e *model.TimeEntry) dto.TimeEntryResponse {
	resp := dto.TimeEntryResponse{
		ID:              e.EntryID,
		CareSpaceID:     e.CareSpaceID,
		CarerID:         e.CarerID,
		StartAt:         dto.FormatTime(e.StartAt),
		EndAt:           dto.FormatTime(e.EndAt),
		ShiftType:       e.ShiftType,
		Notes:           e.Notes,
		ShiftInstanceID: e.ShiftInstanceID,
		UpdatedAt:       dto.FormatTime(e.UpdatedAt),
	}
	if e.Carer != nil {
		resp.Carer = &dto.MemberBrief{ID: e.Carer.MemberID, Name: e.Carer.Name}
	}
	return resp
}
