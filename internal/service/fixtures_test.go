package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"care-hub/backend/config"
	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
	"care-hub/backend/internal/repository"
	"care-hub/backend/pkg/database"
)

// ── 测试辅助 ──

const testSpace = "11111111-1111-1111-1111-111111111111"

// testClock 每次读取前进 1 秒，保证写入时间严格递增
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// eventRecorder 记录通知事件
type eventRecorder struct {
	mu     sync.Mutex
	events []dto.WorkflowEvent
}

func (r *eventRecorder) Notify(_ context.Context, e dto.WorkflowEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) has(eventType string) bool {
	for _, t := range r.types() {
		if t == eventType {
			return true
		}
	}
	return false
}

type testEnv struct {
	t      *testing.T
	ctx    context.Context
	repo   *repository.Repository
	svc    *Service
	clock  *testClock
	events *eventRecorder

	alice    *model.Member // 护工 A
	bob      *model.Member // 护工 B
	reviewer *model.Member
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	db, err := database.NewMemoryDB(model.NewID())
	if err != nil {
		t.Fatalf("创建内存数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	env := &testEnv{
		t:      t,
		ctx:    context.Background(),
		repo:   repository.NewRepository(db),
		clock:  newTestClock(),
		events: &eventRecorder{},
	}
	opts = append([]Option{WithClock(env.clock.Now), WithNotifier(env.events)}, opts...)
	env.svc = NewService(config.DefaultWorkflowConfig(), env.repo, zap.NewNop(), opts...)
	t.Cleanup(env.svc.Archiver.Wait)

	env.alice = env.seedMember("Alice", model.RoleCarer)
	env.bob = env.seedMember("Bob", model.RoleCarer)
	env.reviewer = env.seedMember("Rita", model.RoleCoordinator)
	return env
}

// observeLogs 以可观测 logger 重建服务，返回捕获的日志
func (e *testEnv) observeLogs() *observer.ObservedLogs {
	e.t.Helper()
	obs, logs := observer.New(zapcore.InfoLevel)
	e.svc = NewService(config.DefaultWorkflowConfig(), e.repo, zap.New(obs),
		WithClock(e.clock.Now), WithNotifier(e.events))
	e.t.Cleanup(e.svc.Archiver.Wait)
	return logs
}

func (e *testEnv) seedMember(name, role string) *model.Member {
	e.t.Helper()
	m := &model.Member{MemberID: model.NewID(), CareSpaceID: testSpace, Name: name, Role: role, IsActive: true}
	if err := e.repo.Member.Create(e.ctx, m); err != nil {
		e.t.Fatalf("创建成员失败: %v", err)
	}
	return m
}

// seedEntry 创建某日 09:00-17:00 的条目
func (e *testEnv) seedEntry(carer *model.Member, date, shiftType string) *model.TimeEntry {
	e.t.Helper()
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		e.t.Fatalf("日期格式错误: %v", err)
	}
	now := e.clock.Now()
	entry := &model.TimeEntry{
		EntryID:     model.NewID(),
		CareSpaceID: testSpace,
		CarerID:     carer.MemberID,
		StartAt:     day.Add(9 * time.Hour),
		EndAt:       day.Add(17 * time.Hour),
		ShiftType:   shiftType,
		Notes:       "seed",
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := e.repo.TimeEntry.Create(e.ctx, entry); err != nil {
		e.t.Fatalf("创建条目失败: %v", err)
	}
	return entry
}

// seedInstance 创建模板与某日实例
func (e *testEnv) seedInstance(carer *model.Member, date string, startTime, endTime *string) *model.ShiftInstance {
	e.t.Helper()
	day, _ := time.Parse(model.DateLayout, date)
	tpl := &model.ShiftTemplate{
		TemplateID:  model.NewID(),
		CareSpaceID: testSpace,
		CarerID:     carer.MemberID,
		DayOfWeek:   isoWeekday(day),
		StartTime:   startTime,
		EndTime:     endTime,
		ShiftType:   "basic",
		IsActive:    true,
	}
	if err := e.repo.ShiftTemplate.Create(e.ctx, tpl); err != nil {
		e.t.Fatalf("创建模板失败: %v", err)
	}
	inst := &model.ShiftInstance{
		InstanceID:   model.NewID(),
		TemplateID:   tpl.TemplateID,
		InstanceDate: date,
		Status:       model.InstanceScheduled,
	}
	if err := e.repo.ShiftInstance.Create(e.ctx, inst); err != nil {
		e.t.Fatalf("创建实例失败: %v", err)
	}
	return inst
}

func (e *testEnv) actor(m *model.Member) dto.Actor {
	return dto.Actor{ID: m.MemberID, CareSpaceID: testSpace, Role: m.Role}
}

// createRequest 以 reviewer 身份为条目创建改时申请（次日同一时段 +1h）
func (e *testEnv) createRequest(entry *model.TimeEntry) *dto.ChangeRequestResponse {
	e.t.Helper()
	resp, err := e.svc.ChangeRequest.Create(e.ctx, e.actor(e.reviewer), &dto.CreateChangeRequestRequest{
		EditTarget:   dto.EditTarget{TimeEntryID: entry.EntryID},
		NewStartAt:   entry.StartAt.Add(time.Hour),
		NewEndAt:     entry.EndAt.Add(time.Hour),
		NewShiftType: "cover",
		Reason:       "调整时间",
	})
	if err != nil {
		e.t.Fatalf("创建变更申请失败: %v", err)
	}
	return resp
}

func (e *testEnv) entry(id string) *model.TimeEntry {
	e.t.Helper()
	entry, err := e.repo.TimeEntry.GetByID(e.ctx, id)
	if err != nil {
		e.t.Fatalf("读取条目失败: %v", err)
	}
	return entry
}

func (e *testEnv) request(id string) *model.ChangeRequest {
	e.t.Helper()
	req, err := e.repo.ChangeRequest.GetByID(e.ctx, id)
	if err != nil {
		e.t.Fatalf("读取变更申请失败: %v", err)
	}
	return req
}

func isoWeekday(d time.Time) int {
	if d.Weekday() == time.Sunday {
		return 7
	}
	return int(d.Weekday())
}

func strPtr(s string) *string { return &s }
