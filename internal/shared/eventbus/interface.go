// Package eventbus 事件总线抽象接口
//
// 提供任务变更事件的发布/订阅能力，当前由 Redis Streams 实现。
// 单实例部署可用 Noop 实现，WebSocket 网关退化为进程内直接广播。
package eventbus

import "context"

// TaskEventBus 任务事件总线接口
type TaskEventBus interface {
	PublishTaskEvent(ctx context.Context, event *TaskEvent) error
	// SubscribeTaskEvents 订阅任务事件流，ctx 取消后通道关闭
	SubscribeTaskEvents(ctx context.Context) (<-chan *TaskEvent, error)
}

// EventBus 事件总线组合接口
type EventBus interface {
	TaskEventBus
	Close() error
}
