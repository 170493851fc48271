// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"

	"workerbee/internal/shared/model"
)

// 任务事件类型
const (
	EventTaskCreated = "task-created"
	EventTaskUpdated = "task-updated"
	EventTaskDeleted = "task-deleted"
)

// TaskEvent 任务变更事件
//
// Task 为变更后的完整记录（删除事件只带 TaskID）。
// ActorID 为触发变更的用户，网关据此跳过回显给操作者本人。
type TaskEvent struct {
	ID        string      `json:"id,omitempty"`
	Type      string      `json:"type"`
	TaskID    string      `json:"task_id"`
	ActorID   string      `json:"actor_id"`
	Task      *model.Task `json:"task,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Key 前缀和常量
const (
	// KeyTaskEvents 任务事件流的 Stream Key
	KeyTaskEvents = "task_events"

	// MaxStreamLength Stream 最大长度
	MaxStreamLength = 1000
)
