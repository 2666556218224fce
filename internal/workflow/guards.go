// Package workflow 审批流程的纯状态守卫
// 守卫函数只根据传入的上下文判断是否允许迁移，不产生副作用；
// 持久化层再以条件更新兑现同样的规则
package workflow

import (
	"fmt"

	"care-hub/backend/internal/model"
)

// GuardResult 守卫判定结果
// Stale 表示申请已被他人处理、不再处于动作要求的状态，调用方应重新查询而非重试
type GuardResult struct {
	Allowed bool
	Stale   bool
	Reason  string
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func stale(format string, args ...interface{}) GuardResult {
	return GuardResult{Stale: true, Reason: fmt.Sprintf(format, args...)}
}

func reject(format string, args ...interface{}) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// ── 变更申请 ──

// changeRequestTransitions 合法迁移表
// pending → applied | denied；applied → reverted | archived；denied → archived；reverted → archived
var changeRequestTransitions = map[string][]string{
	model.ChangeRequestPending:  {model.ChangeRequestApplied, model.ChangeRequestDenied},
	model.ChangeRequestApplied:  {model.ChangeRequestReverted, model.ChangeRequestArchived},
	model.ChangeRequestDenied:   {model.ChangeRequestArchived},
	model.ChangeRequestReverted: {model.ChangeRequestArchived},
}

// CanTransition 判断变更申请能否从 from 迁移到 to
func CanTransition(from, to string) bool {
	for _, next := range changeRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf 返回可迁移到 to 的全部来源状态，用于条件 UPDATE 的 status IN (...)
func SourcesOf(to string) []string {
	var sources []string
	for _, from := range []string{
		model.ChangeRequestPending,
		model.ChangeRequestApplied,
		model.ChangeRequestDenied,
		model.ChangeRequestReverted,
	} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// CanApprove 仅 pending 可批准
func CanApprove(status string) GuardResult {
	if status != model.ChangeRequestPending {
		return stale("只能批准待审批的申请（当前状态: %s）", status)
	}
	return allow()
}

// CanDeny 仅 pending 可拒绝
func CanDeny(status string) GuardResult {
	if status != model.ChangeRequestPending {
		return stale("只能拒绝待审批的申请（当前状态: %s）", status)
	}
	return allow()
}

// CanDelete 仅 pending 可删除
func CanDelete(status string) GuardResult {
	if status != model.ChangeRequestPending {
		return stale("只能删除待审批的申请（当前状态: %s）", status)
	}
	return allow()
}

// RevertContext 撤销判定上下文
type RevertContext struct {
	Status      string
	HasSnapshot bool
	Conflict    bool
	Force       bool
}

// CanRevert 判断能否撤销已生效的申请
// 规则:
// - 状态必须为 applied 且已有快照
// - 目标条目在生效后被修改过时，需显式强制
func CanRevert(ctx RevertContext) GuardResult {
	if ctx.Status != model.ChangeRequestApplied {
		return stale("只能撤销已生效的申请（当前状态: %s）", ctx.Status)
	}
	if !ctx.HasSnapshot {
		return reject("申请缺少生效前快照，无法撤销")
	}
	if ctx.Conflict && !ctx.Force {
		return reject("目标条目在申请生效后已被修改，需强制撤销")
	}
	return allow()
}

// CanArchive applied / denied / reverted 可归档
// pending 归档属于非法迁移；已归档视为已被处理
func CanArchive(status string) GuardResult {
	switch {
	case CanTransition(status, model.ChangeRequestArchived):
		return allow()
	case status == model.ChangeRequestPending:
		return reject("待审批的申请不能归档，请先批准或拒绝")
	default:
		return stale("申请已归档（当前状态: %s）", status)
	}
}

// ── 请假撤销申请 ──

// CanReviewCancellation 仅 pending 的撤销申请可审批
func CanReviewCancellation(status string) GuardResult {
	if status != model.CancellationPending {
		return stale("撤销申请已处理（当前状态: %s）", status)
	}
	return allow()
}

// ── 请假申请 ──

// CanReviewLeave 仅 pending 的请假可批准或拒绝
func CanReviewLeave(status string) GuardResult {
	if status != model.LeavePending {
		return stale("请假申请已处理（当前状态: %s）", status)
	}
	return allow()
}

// CanCancelLeave 申请人只能取消自己仍待审批的请假
func CanCancelLeave(status, carerID, actorID string) GuardResult {
	if carerID != actorID {
		return reject("只能取消本人的请假申请")
	}
	if status != model.LeavePending {
		return stale("只能取消待审批的请假（当前状态: %s）", status)
	}
	return allow()
}
