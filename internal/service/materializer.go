package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"care-hub/backend/config"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
)

// Materializer 将周期班次实例物化为可独立编辑的时间条目
// 物化后的条目即为权威记录，之后的模板修改不再影响它
type Materializer struct {
	cfg    config.WorkflowConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewMaterializer 创建 Materializer
func NewMaterializer(cfg config.WorkflowConfig, now func() time.Time, logger *zap.Logger) *Materializer {
	return &Materializer{cfg: cfg, now: now, logger: logger}
}

// Materialize 返回实例对应的时间条目，必要时创建
// 幂等：已物化的实例直接返回原条目，created 为 false
// repo 可以是事务内的 Repository
func (m *Materializer) Materialize(ctx context.Context, repo *repository.Repository, instanceID, actorID string) (*model.TimeEntry, bool, error) {
	existing, err := repo.TimeEntry.GetByInstanceID(ctx, instanceID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, storageErr("查询已物化条目", err)
	}

	inst, err := repo.ShiftInstance.GetByID(ctx, instanceID)
	if err != nil {
		return nil, false, mapNotFound(err, ErrShiftInstanceNotFound, "查询班次实例")
	}
	if inst.Status == model.InstanceCancelled {
		return nil, false, newValidationError("shift_instance_id", "班次实例已取消，不能编辑")
	}
	tpl := inst.Template
	if tpl == nil {
		if tpl, err = repo.ShiftTemplate.GetByID(ctx, inst.TemplateID); err != nil {
			return nil, false, mapNotFound(err, ErrShiftInstanceNotFound, "查询班次模板")
		}
	}

	startAt, endAt, err := m.window(inst.InstanceDate, tpl.StartTime, tpl.EndTime, tpl.DurationMinutes)
	if err != nil {
		return nil, false, err
	}

	now := m.now()
	instID := inst.InstanceID
	entry := &model.TimeEntry{
		EntryID:         model.NewID(),
		CareSpaceID:     tpl.CareSpaceID,
		CarerID:         tpl.CarerID,
		StartAt:         startAt,
		EndAt:           endAt,
		ShiftType:       tpl.ShiftType,
		ShiftInstanceID: &instID,
		BaseModel:       model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if entry.ShiftType == "" {
		entry.ShiftType = m.cfg.DefaultWorkType
	}
	if actorID != "" {
		entry.CreatedBy = &actorID
	}

	// 并发物化同一实例时由唯一索引兜底，落败方读取胜者的条目
	created, err := repo.TimeEntry.CreateMaterialized(ctx, entry)
	if err != nil {
		return nil, false, storageErr("创建物化条目", err)
	}
	if !created {
		winner, err := repo.TimeEntry.GetByInstanceID(ctx, instanceID)
		if err != nil {
			return nil, false, storageErr("读取已物化条目", err)
		}
		return winner, false, nil
	}

	m.logger.Info("班次实例已物化",
		zap.String("instance_id", instanceID),
		zap.String("entry_id", entry.EntryID),
	)
	return entry, true, nil
}

// EnsureEntryForDate 保证护工在某日有可编辑的时间条目
// 顺序：已有条目 → 当日有效实例物化 → 按默认时段新建
func (m *Materializer) EnsureEntryForDate(ctx context.Context, repo *repository.Repository, careSpaceID, carerID, date, actorID string) (*model.TimeEntry, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, newValidationError("date", "日期格式应为 YYYY-MM-DD")
	}

	entries, err := repo.TimeEntry.FindByCarerInRange(ctx, carerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, storageErr("查询当日条目", err)
	}
	if len(entries) > 0 {
		return &entries[0], nil
	}

	inst, err := repo.ShiftInstance.FindScheduledByCarerAndDate(ctx, carerID, date)
	switch {
	case err == nil:
		entry, _, err := m.Materialize(ctx, repo, inst.InstanceID, actorID)
		return entry, err
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, storageErr("查询当日班次实例", err)
	}

	startAt, endAt, err := m.window(date, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	now := m.now()
	entry := &model.TimeEntry{
		EntryID:     model.NewID(),
		CareSpaceID: careSpaceID,
		CarerID:     carerID,
		StartAt:     startAt,
		EndAt:       endAt,
		ShiftType:   m.cfg.DefaultWorkType,
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if actorID != "" {
		entry.CreatedBy = &actorID
	}
	if err := repo.TimeEntry.Create(ctx, entry); err != nil {
		return nil, storageErr("创建当日条目", err)
	}
	return entry, nil
}

// window 计算条目起止时间（UTC）
// 模板缺少开始时间时使用默认开始小时；缺少结束时间时按时长（模板时长或默认 8h）推算
func (m *Materializer) window(date string, startTime, endTime *string, durationMinutes *int) (time.Time, time.Time, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("instance_date", "日期格式应为 YYYY-MM-DD")
	}

	startAt := day.Add(time.Duration(m.cfg.DefaultStartHour) * time.Hour)
	if startTime != nil && *startTime != "" {
		offset, err := parseClock(*startTime)
		if err != nil {
			return time.Time{}, time.Time{}, newValidationError("start_time", err.Error())
		}
		startAt = day.Add(offset)
	}

	duration := m.cfg.DefaultDuration
	if durationMinutes != nil && *durationMinutes > 0 {
		duration = time.Duration(*durationMinutes) * time.Minute
	}
	endAt := startAt.Add(duration)
	if endTime != nil && *endTime != "" {
		offset, err := parseClock(*endTime)
		if err != nil {
			return time.Time{}, time.Time{}, newValidationError("end_time", err.Error())
		}
		endAt = day.Add(offset)
		// 跨夜班次
		if !endAt.After(startAt) {
			endAt = endAt.AddDate(0, 0, 1)
		}
	}
	return startAt, endAt, nil
}

// parseClock 解析 HH:MM 为当日偏移
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("时间格式应为 HH:MM")
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
