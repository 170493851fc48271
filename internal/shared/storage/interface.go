// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/, repository/, sheetstore/, memstore/
//   - 初始化时通过依赖注入传入实现
//
// 归一化约定：所有实现返回的记录满足统一形状——
//   - ID 为非空字符串（表格上游的行号 id 也折叠到同一字段）
//   - status 为合法两态枚举，completed 布尔在解码时折叠进 status
//   - assigned_to/created_by 为用户 ID 或邮箱字符串，绝不返回嵌套对象
//
// 上层业务（过滤、排序、引用解析）因此无需关心记录来自哪套后端。
package storage

import (
	"context"
	"time"

	"workerbee/internal/shared/model"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// ListUsers 返回全部活跃用户；search 非空时按用户名/邮箱/显示名模糊匹配
	ListUsers(ctx context.Context, search string) ([]*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	// UpdateUserLoginState 更新登录簿记（失败计数、锁定截止、最近登录时间）
	UpdateUserLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin *time.Time) error
}

// TaskStore 任务存储接口
//
// ListTasks 返回全量任务集；过滤/排序/分页由业务层在内存中完成，
// 以保证两套后端（文档库与表格上游）行为一致。
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	TaskStore
	Close() error
}
