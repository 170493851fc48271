// Package task 任务业务逻辑：引用解析、状态协调、过滤/排序/分页、HTTP 接口
package task

import (
	"strings"

	"workerbee/internal/shared/model"
)

// 占位显示名
const (
	PlaceholderUnassigned = "unassigned"
	PlaceholderUnknown    = "unknown"
)

// ResolvedRef 展示用的用户引用（派生数据，不落盘）
type ResolvedRef struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// UserIndex 用户引用的 O(1) 查找索引，键为用户 ID 和小写邮箱
type UserIndex map[string]*model.User

// NewUserIndex 一次 O(n) 扫描建索引，之后每条任务的解析都是 O(1)，
// 避免列表接口按任务数做重复线性查找
func NewUserIndex(users []*model.User) UserIndex {
	idx := make(UserIndex, len(users)*2)
	for _, u := range users {
		if u == nil || u.ID == "" {
			continue
		}
		idx[u.ID] = u
		if u.Email != "" {
			idx[strings.ToLower(u.Email)] = u
		}
	}
	return idx
}

// Resolve 将存储层的引用字符串解析为展示记录，绝不失败：
//   - 空引用 → "unassigned" 占位
//   - 命中索引（ID 或邮箱）→ 用户展示记录
//   - 形似邮箱或人类可读标签的未命中引用 → 原样作为显示名透传
//     （历史表格数据直接把邮箱/姓名写进单元格）
//   - 其余不透明 ID → "unknown" 占位
func (idx UserIndex) Resolve(ref string) ResolvedRef {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ResolvedRef{DisplayName: PlaceholderUnassigned}
	}

	if u, ok := idx[ref]; ok {
		return userRef(u)
	}
	if u, ok := idx[strings.ToLower(ref)]; ok {
		return userRef(u)
	}

	if strings.Contains(ref, "@") {
		return ResolvedRef{DisplayName: ref, Email: ref}
	}
	if strings.ContainsAny(ref, " \t") {
		// 带空白的引用不可能是 ID，按人名标签透传
		return ResolvedRef{DisplayName: ref}
	}

	return ResolvedRef{ID: ref, DisplayName: PlaceholderUnknown}
}

func userRef(u *model.User) ResolvedRef {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return ResolvedRef{ID: u.ID, DisplayName: name, Email: u.Email}
}
