// Package redis 基于 Redis Streams 的任务事件总线
//
// 每条任务变更写入同一个 Stream，多实例部署时各实例订阅同一个
// Stream（广播语义，不用消费组），各自把事件转发给本地 WebSocket 客户端。
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"workerbee/internal/shared/eventbus"
	"workerbee/internal/shared/model"
)

// Bus 实现 eventbus.EventBus 接口的 Redis Streams 驱动
type Bus struct {
	client *redis.Client
}

var _ eventbus.EventBus = (*Bus)(nil)

// NewBus 创建 Redis 事件总线
//
// addr: Redis 地址，如 "localhost:6379"
func NewBus(addr, password string, db int) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("eventbus: redis ping failed: %w", err)
	}

	return &Bus{client: client}, nil
}

// Close 关闭 Redis 连接
func (b *Bus) Close() error {
	return b.client.Close()
}

// PublishTaskEvent 发布任务变更事件
func (b *Bus) PublishTaskEvent(ctx context.Context, event *eventbus.TaskEvent) error {
	var taskJSON []byte
	if event.Task != nil {
		var err error
		taskJSON, err = json.Marshal(event.Task)
		if err != nil {
			return fmt.Errorf("eventbus: marshal task: %w", err)
		}
	}

	args := &redis.XAddArgs{
		Stream: eventbus.KeyTaskEvents,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"type":      event.Type,
			"task_id":   event.TaskID,
			"actor_id":  event.ActorID,
			"task":      string(taskJSON),
			"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		},
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("eventbus: publish task event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published event: id=%s type=%s task=%s", id, event.Type, event.TaskID)
	return nil
}

// SubscribeTaskEvents 订阅任务事件流
//
// 从订阅时刻之后的新事件开始读（"$"），不回放历史。
func (b *Bus) SubscribeTaskEvents(ctx context.Context) (<-chan *eventbus.TaskEvent, error) {
	ch := make(chan *eventbus.TaskEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{eventbus.KeyTaskEvents, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Redis/EventBus] Subscription error: %v", err)
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					event := decodeEvent(msg)
					lastID = msg.ID

					select {
					case ch <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

func decodeEvent(msg redis.XMessage) *eventbus.TaskEvent {
	event := &eventbus.TaskEvent{ID: msg.ID}

	if v, ok := msg.Values["type"].(string); ok {
		event.Type = v
	}
	if v, ok := msg.Values["task_id"].(string); ok {
		event.TaskID = v
	}
	if v, ok := msg.Values["actor_id"].(string); ok {
		event.ActorID = v
	}
	if v, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			event.Timestamp = t
		}
	}
	if v, ok := msg.Values["task"].(string); ok && v != "" {
		var task model.Task
		if err := json.Unmarshal([]byte(v), &task); err == nil {
			event.Task = &task
		}
	}

	return event
}
