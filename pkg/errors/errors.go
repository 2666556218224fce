package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录状态已被其他操作修改
// 条件更新 / 条件删除影响行数为 0 时返回
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
