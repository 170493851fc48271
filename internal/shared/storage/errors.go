// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（mongostore/repository/sheetstore/memstore）负责将
// 底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（用户名/邮箱已被注册）
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrUnavailable 后端不可达或超时（表格上游等远端存储）
	ErrUnavailable = errors.New("storage backend unavailable")
)
