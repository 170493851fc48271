package sheetstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"workerbee/internal/shared/model"
)

// sheetRow 表格行的宽容解码形状
//
// 历史数据里同一列可能出现多种类型：
//   - id 列：字符串 id、数字行号、或写在 "_id" 键下
//   - status/completed：只有 completed 布尔的旧行、两者都有的新行
//   - assigned_to：用户 id 字符串、邮箱、或被整个用户对象 JSON 塞进单元格
//   - 时间列：RFC3339、"2006-01-02"、或空串
//
// 解码后统一折叠为 model 的规范形状，status 为唯一事实来源。
type sheetRow struct {
	ID          flexString `json:"id"`
	LegacyID    flexString `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Completed   *bool      `json:"completed"`
	DueDate     flexTime   `json:"due_date"`
	AssignedTo  flexRef    `json:"assigned_to"`
	CreatedBy   flexRef    `json:"created_by"`
	CompletedAt flexTime   `json:"completed_at"`
	CompletedBy flexString `json:"completed_by"`
	CreatedAt   flexTime   `json:"created_at"`
	UpdatedAt   flexTime   `json:"updated_at"`
}

// flexString 接受字符串或数字的单元格值
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	return fmt.Errorf("cell is neither string nor number: %s", data)
}

// flexTime 接受多种时间格式的单元格值
type flexTime struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time cell is not a string: %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.t = &t
			return nil
		}
	}
	return fmt.Errorf("unrecognized time format %q", s)
}

// flexRef 用户引用单元格：id 字符串、邮箱、或整个用户对象
//
// 对象形状时优先取 _id/id，缺失时退回 email；引用解析器对
// 邮箱形式的引用有独立的匹配路径，这里只负责折叠为字符串。
type flexRef string

func (f *flexRef) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err == nil {
		*f = flexRef(s)
		return nil
	}
	var obj struct {
		ID       flexString `json:"id"`
		LegacyID flexString `json:"_id"`
		Email    string     `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("assignee cell is neither string nor object: %s", data)
	}
	switch {
	case obj.LegacyID != "":
		*f = flexRef(obj.LegacyID)
	case obj.ID != "":
		*f = flexRef(obj.ID)
	default:
		*f = flexRef(obj.Email)
	}
	return nil
}

// toTask 把宽容行折叠为规范任务记录
func (r *sheetRow) toTask() (*model.Task, error) {
	id := string(r.LegacyID)
	if id == "" {
		id = string(r.ID)
	}
	if id == "" {
		return nil, fmt.Errorf("row has no id")
	}

	status := model.TaskStatus(r.Status)
	if r.Status == "" {
		// 只有 completed 布尔的旧行
		status = model.StatusPending
		if r.Completed != nil && *r.Completed {
			status = model.StatusCompleted
		}
	}
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("row %s has invalid status %q", id, r.Status)
	}

	priority := model.TaskPriority(r.Priority)
	if r.Priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("row %s has invalid priority %q", id, r.Priority)
	}

	task := &model.Task{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Priority:    priority,
		Status:      status,
		DueDate:     r.DueDate.t,
		AssignedTo:  string(r.AssignedTo),
		CreatedBy:   string(r.CreatedBy),
		CompletedAt: r.CompletedAt.t,
	}
	if r.CompletedBy != "" {
		by := string(r.CompletedBy)
		task.CompletedBy = &by
	}
	if r.CreatedAt.t != nil {
		task.CreatedAt = *r.CreatedAt.t
	}
	if r.UpdatedAt.t != nil {
		task.UpdatedAt = *r.UpdatedAt.t
	} else {
		task.UpdatedAt = task.CreatedAt
	}
	return task, nil
}

// userRow 用户表行的宽容解码形状
type userRow struct {
	ID            flexString `json:"id"`
	LegacyID      flexString `json:"_id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name"`
	PasswordHash  string     `json:"password_hash"`
	Active        *bool      `json:"active"`
	LoginAttempts int        `json:"login_attempts"`
	LockUntil     flexTime   `json:"lock_until"`
	LastLoginAt   flexTime   `json:"last_login_at"`
	CreatedAt     flexTime   `json:"created_at"`
	UpdatedAt     flexTime   `json:"updated_at"`

	Preferences model.UserPreferences `json:"preferences"`
}

// toUser 把宽容行折叠为规范用户记录
func (r *userRow) toUser() (*model.User, error) {
	id := string(r.LegacyID)
	if id == "" {
		id = string(r.ID)
	}
	if id == "" {
		return nil, fmt.Errorf("user row has no id")
	}

	active := true
	if r.Active != nil {
		active = *r.Active
	}

	u := &model.User{
		ID:            id,
		Username:      r.Username,
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		PasswordHash:  r.PasswordHash,
		Active:        active,
		Preferences:   r.Preferences,
		LoginAttempts: r.LoginAttempts,
		LockUntil:     r.LockUntil.t,
		LastLoginAt:   r.LastLoginAt.t,
	}
	if r.CreatedAt.t != nil {
		u.CreatedAt = *r.CreatedAt.t
	}
	if r.UpdatedAt.t != nil {
		u.UpdatedAt = *r.UpdatedAt.t
	} else {
		u.UpdatedAt = u.CreatedAt
	}
	return u, nil
}
