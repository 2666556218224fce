package dto

import "time"

// 流程事件类型
const (
	EventChangeRequestCreated  = "change_request.created"
	EventChangeRequestApplied  = "change_request.applied"
	EventChangeRequestDenied   = "change_request.denied"
	EventChangeRequestReverted = "change_request.reverted"
	EventChangeRequestArchived = "change_request.archived"
	EventChangeRequestDeleted  = "change_request.deleted"
	EventBundleCreated         = "bundle.created"
	EventBundleProcessed       = "bundle.processed"
	EventLeaveCancelled        = "leave.cancelled"
	EventLeaveCancellationOpen = "leave_cancellation.requested"
	EventLeaveCancellationDone = "leave_cancellation.approved"
	EventLeaveCancellationDeny = "leave_cancellation.denied"
	EventLeaveRequested        = "leave.requested"
	EventLeaveApproved         = "leave.approved"
	EventLeaveDenied           = "leave.denied"
	EventLeaveWithdrawn        = "leave.withdrawn"
	EventInstanceMaterialized  = "shift_instance.materialized"
	EventAutoArchived          = "sweep.completed"
)

// WorkflowEvent 提交成功后发出的通知，供日历/队列刷新
type WorkflowEvent struct {
	Type         string    `json:"type"`
	CareSpaceID  string    `json:"care_space_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	BundleID     string    `json:"bundle_id,omitempty"`
	TimeEntryIDs []string  `json:"time_entry_ids,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
