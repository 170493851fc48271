package eventbus

import "context"

// Noop 空实现，用于未配置 Redis 的单实例部署和测试
type Noop struct{}

var _ EventBus = (*Noop)(nil)

// NewNoop 创建空事件总线
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) PublishTaskEvent(ctx context.Context, event *TaskEvent) error {
	return nil
}

func (n *Noop) SubscribeTaskEvents(ctx context.Context) (<-chan *TaskEvent, error) {
	ch := make(chan *TaskEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (n *Noop) Close() error {
	return nil
}
