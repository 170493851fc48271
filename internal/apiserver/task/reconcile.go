package task

import (
	"time"

	"workerbee/internal/shared/apperr"
	"workerbee/internal/shared/model"
)

// Patch 任务更新请求的可选字段集合，nil 表示未提交
//
// 旧客户端只发 completed 布尔，新客户端发 status 枚举，
// 两者都发的过渡期请求由 ReconcileStatus 统一裁决。
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	Completed   *bool   `json:"completed"`
	DueDate     *string `json:"due_date"`
	AssignedTo  *string `json:"assigned_to"`
}

// ReconcileStatus 裁决 patch 中的目标状态
//
// 返回 nil 表示请求没有改状态的意图。规则：
//   - 只有 status → 按枚举校验后采用
//   - 只有 completed → 派生出对应状态（兼容旧客户端）
//   - 两者都有且一致 → 采用 status
//   - 两者都有且矛盾 → status 为唯一事实来源，默认以 status 为准
//     静默修正；strict 模式下直接拒绝写入
func ReconcileStatus(p *Patch, strict bool) (*model.TaskStatus, error) {
	if p.Status == nil && p.Completed == nil {
		return nil, nil
	}

	if p.Status == nil {
		status := model.StatusPending
		if *p.Completed {
			status = model.StatusCompleted
		}
		return &status, nil
	}

	status := model.TaskStatus(*p.Status)
	if !model.ValidStatus(status) {
		return nil, apperr.Newf(apperr.KindValidation, "invalid status %q, want pending or completed", *p.Status)
	}

	if p.Completed != nil && *p.Completed != (status == model.StatusCompleted) {
		if strict {
			return nil, apperr.New(apperr.KindValidation, "status and completed contradict each other")
		}
	}
	return &status, nil
}

// ApplyStatusChange 执行状态迁移并维护完成归档字段
//
// pending→completed 打点 completedAt/completedBy；
// completed→pending 清空两者；同态迁移不动归档字段。
func ApplyStatusChange(t *model.Task, status model.TaskStatus, actorID string, now time.Time) {
	if t.Status == status {
		return
	}
	t.Status = status
	if status == model.StatusCompleted {
		t.CompletedAt = &now
		by := actorID
		t.CompletedBy = &by
	} else {
		t.CompletedAt = nil
		t.CompletedBy = nil
	}
}
