package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"care-hub/backend/internal/dto"
	"care-hub/backend/pkg/redis"
)

// Notifier 结果通知出口，事务提交后调用
// 实现不得阻塞业务流程；失败只记录日志
type Notifier interface {
	Notify(ctx context.Context, event dto.WorkflowEvent)
}

// NotifierFunc 函数适配器
type NotifierFunc func(ctx context.Context, event dto.WorkflowEvent)

// Notify 实现 Notifier
func (f NotifierFunc) Notify(ctx context.Context, event dto.WorkflowEvent) { f(ctx, event) }

// LogNotifier 以结构化日志输出事件
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建 LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event dto.WorkflowEvent) {
	n.logger.Info("流程事件",
		zap.String("type", event.Type),
		zap.String("care_space_id", event.CareSpaceID),
		zap.String("actor_id", event.ActorID),
		zap.String("request_id", event.RequestID),
		zap.String("bundle_id", event.BundleID),
		zap.Strings("time_entry_ids", event.TimeEntryIDs),
	)
}

// RedisNotifier 通过 Redis Pub/Sub 广播事件，前端网关订阅后刷新日历与队列
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier 创建 RedisNotifier
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

func (n *RedisNotifier) Notify(ctx context.Context, event dto.WorkflowEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("序列化流程事件失败", zap.String("type", event.Type), zap.Error(err))
		return
	}
	// 请求可能已结束，发布使用独立超时
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.client.Publish(pubCtx, n.channel, payload); err != nil {
		n.logger.Warn("发布流程事件失败", zap.String("type", event.Type), zap.Error(err))
	}
}

// MultiNotifier 依次分发到多个 Notifier
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event dto.WorkflowEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, dto.WorkflowEvent) {}
