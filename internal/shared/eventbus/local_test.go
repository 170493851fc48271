package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPublishSubscribe(t *testing.T) {
	bus := NewLocal()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeTaskEvents(ctx)
	require.NoError(t, err)

	event := &TaskEvent{Type: EventTaskCreated, TaskID: "tsk-1", Timestamp: time.Now().UTC()}
	require.NoError(t, bus.PublishTaskEvent(ctx, event))

	select {
	case got := <-ch:
		assert.Equal(t, EventTaskCreated, got.Type)
		assert.Equal(t, "tsk-1", got.TaskID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalFanOut(t *testing.T) {
	bus := NewLocal()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := bus.SubscribeTaskEvents(ctx)
	require.NoError(t, err)
	ch2, err := bus.SubscribeTaskEvents(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.PublishTaskEvent(ctx, &TaskEvent{Type: EventTaskDeleted, TaskID: "tsk-2"}))

	for _, ch := range []<-chan *TaskEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "tsk-2", got.TaskID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered to all subscribers")
		}
	}
}

func TestLocalUnsubscribeOnCancel(t *testing.T) {
	bus := NewLocal()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.SubscribeTaskEvents(ctx)
	require.NoError(t, err)

	cancel()

	// 取消后通道关闭，后续发布不会送达
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLocalSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewLocal()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.SubscribeTaskEvents(ctx)
	require.NoError(t, err)

	// 缓冲 100，灌 200 条也不能阻塞发布方
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.PublishTaskEvent(ctx, &TaskEvent{Type: EventTaskUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
