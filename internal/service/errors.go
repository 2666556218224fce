package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "care-hub/backend/pkg/errors"
)

// ── 流程通用错误 ──

var (
	// ErrValidation 输入不合法，所有 *ValidationError 均满足 errors.Is(err, ErrValidation)
	ErrValidation = errors.New("参数校验失败")
	// ErrAlreadyProcessed 申请状态已被并发修改，调用方应重新查询而非重试
	ErrAlreadyProcessed = errors.New("申请已被处理，请刷新后重试")
	// ErrInvalidTransition 当前状态不允许该操作
	ErrInvalidTransition = errors.New("当前状态不允许该操作")
	// ErrRevertConflict 所有 *ConflictError 均满足 errors.Is(err, ErrRevertConflict)
	ErrRevertConflict = errors.New("目标条目在申请生效后已被修改")
	// ErrStorage 所有 *StorageError 均满足 errors.Is(err, ErrStorage)
	ErrStorage = errors.New("存储操作失败")
)

// ── 资源不存在 ──

var (
	ErrTimeEntryNotFound         = errors.New("时间条目不存在")
	ErrShiftInstanceNotFound     = errors.New("班次实例不存在")
	ErrChangeRequestNotFound     = errors.New("变更申请不存在")
	ErrBundleNotFound            = errors.New("批量申请不存在")
	ErrLeaveRequestNotFound      = errors.New("请假申请不存在")
	ErrLeaveCancellationNotFound = errors.New("请假撤销申请不存在")
	ErrMemberNotFound            = errors.New("成员不存在")
)

// ── 业务规则 ──

var (
	ErrLeaveCancellationPending = errors.New("该请假已有待审批的撤销申请")
	ErrNotLeaveEntry            = errors.New("该条目不是请假")
	ErrBundleRangeTooLong       = errors.New("日期区间超出单次批量上限")
	ErrForbidden                = errors.New("无权执行该操作")
)

// ValidationError 输入校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError 撤销被阻止：目标条目在申请生效后被其他操作修改
// 携带两个时间戳，调用方可据此提供强制撤销
type ConflictError struct {
	AppliedAt  time.Time
	ModifiedAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s（生效于 %s，修改于 %s）",
		ErrRevertConflict.Error(),
		e.AppliedAt.UTC().Format(time.RFC3339Nano),
		e.ModifiedAt.UTC().Format(time.RFC3339Nano))
}

// Is 使 errors.Is(err, ErrRevertConflict) 成立
func (e *ConflictError) Is(target error) bool {
	return target == ErrRevertConflict
}

// StorageError 底层存储异常
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrStorage) 成立
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// storageErr 包装未预期的存储错误；已是业务错误的原样返回
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// isDomainError 是否为已分类的业务错误
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrAlreadyProcessed, ErrInvalidTransition, ErrRevertConflict, ErrStorage,
		ErrTimeEntryNotFound, ErrShiftInstanceNotFound, ErrChangeRequestNotFound, ErrBundleNotFound,
		ErrLeaveRequestNotFound, ErrLeaveCancellationNotFound, ErrMemberNotFound,
		ErrLeaveCancellationPending, ErrNotLeaveEntry, ErrBundleRangeTooLong, ErrForbidden,
		ErrExportNoItems, ErrExportGenerateFail,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// mapNotFound 将 gorm.ErrRecordNotFound 映射为业务 not-found 错误
func mapNotFound(err, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return storageErr(op, err)
}

// mapStale 将乐观锁冲突映射为 ErrAlreadyProcessed
func mapStale(err error, op string) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return ErrAlreadyProcessed
	}
	return storageErr(op, err)
}
