package eventbus

import (
	"context"
	"sync"
)

// Local 进程内事件总线，用于未配置 Redis 的单实例部署
//
// 发布是非阻塞的：慢订阅者的缓冲满了就丢事件，
// 推送本来就是尽力而为，客户端以重新拉取列表兜底。
type Local struct {
	mu   sync.Mutex
	subs map[chan *TaskEvent]struct{}
}

var _ EventBus = (*Local)(nil)

// NewLocal 创建进程内事件总线
func NewLocal() *Local {
	return &Local{subs: make(map[chan *TaskEvent]struct{})}
}

func (l *Local) PublishTaskEvent(_ context.Context, event *TaskEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (l *Local) SubscribeTaskEvents(ctx context.Context) (<-chan *TaskEvent, error) {
	ch := make(chan *TaskEvent, 100)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		close(ch)
		l.mu.Unlock()
	}()

	return ch, nil
}

func (l *Local) Close() error {
	return nil
}
