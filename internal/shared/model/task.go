// Package model 定义核心数据模型
//
// task.go 包含任务相关的模型定义：
//   - Task：任务记录
//   - TaskPriority：优先级枚举
//   - TaskStatus：状态枚举
//
// 历史背景：旧系统同时持久化 completed 布尔和 status 枚举两个冗余字段，
// 并要求二者在每次写入后保持一致。本实现以 status 为唯一事实来源，
// completed 仅作为响应里的派生只读投影（见 Task.Completed），
// 从模型层面消除了这条一致性不变量。
package model

import "time"

// 任务字段约束
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
)

// TaskPriority 任务优先级
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ValidPriority 判断是否为合法优先级
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus 任务状态
//
// 旧系统还有 in_progress 等中间状态的设想，但两套后端实际只落盘
// pending/completed 两种取值，这里保持两态。
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// ValidStatus 判断是否为合法任务状态
func ValidStatus(s TaskStatus) bool {
	return s == StatusPending || s == StatusCompleted
}

// Task 任务记录
//
// AssignedTo/CreatedBy 存储用户 ID 字符串；展示用的
// {id, display_name, email} 结构由读路径的引用解析器按需生成，
// 不回写存储层。CreatedBy 创建后不可变。
type Task struct {
	ID          string       `json:"id" bson:"_id" db:"id"`
	Title       string       `json:"title" bson:"title" db:"title"`
	Description string       `json:"description,omitempty" bson:"description,omitempty" db:"description"`
	Priority    TaskPriority `json:"priority" bson:"priority" db:"priority"`
	Status      TaskStatus   `json:"status" bson:"status" db:"status"`
	DueDate     *time.Time   `json:"due_date,omitempty" bson:"due_date,omitempty" db:"due_date"`

	AssignedTo string `json:"assigned_to" bson:"assigned_to" db:"assigned_to"`
	CreatedBy  string `json:"created_by" bson:"created_by" db:"created_by"`

	// 完成归档：pending→completed 时打点，回退时清空
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty" db:"completed_at"`
	CompletedBy *string    `json:"completed_by,omitempty" bson:"completed_by,omitempty" db:"completed_by"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Completed completed 布尔视图（由 status 派生，保证恒等式
// completed == (status == "completed")）
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Overdue 判断任务在给定时刻是否逾期（有截止时间、已过期且未完成）
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}
