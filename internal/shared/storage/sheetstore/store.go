package sheetstore

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
)

// Store 实现 storage.PersistentStore 接口的表格网关驱动
type Store struct {
	client *Client
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建表格网关存储实例
func NewStore(baseURL, apiKey string, timeout time.Duration) *Store {
	return &Store{client: NewClient(baseURL, apiKey, timeout)}
}

// Close 网关无连接状态，无需清理
func (s *Store) Close() error {
	return nil
}

// ============================================================================
// TaskStore
// ============================================================================

func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	return s.client.post(ctx, "addTask", task, nil)
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var row sheetRow
	params := url.Values{"id": {id}}
	if err := s.client.get(ctx, "getTask", params, &row); err != nil {
		return nil, err
	}
	return row.toTask()
}

// ListTasks 拉取全量任务行；无法折叠为规范形状的行丢弃并记日志，
// 不让单条脏数据拖垮整个列表
func (s *Store) ListTasks(ctx context.Context) ([]*model.Task, error) {
	var rows []sheetRow
	if err := s.client.get(ctx, "getTasks", nil, &rows); err != nil {
		return nil, err
	}

	tasks := make([]*model.Task, 0, len(rows))
	for i := range rows {
		task, err := rows[i].toTask()
		if err != nil {
			log.Printf("[sheetstore] dropping malformed task row: %v", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	return s.client.post(ctx, "updateTask", task, nil)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.client.post(ctx, "deleteTask", map[string]string{"id": id}, nil)
}

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	// 网关不强制唯一约束，这里先查重再写入
	if existing, err := s.GetUserByEmail(ctx, user.Email); err == nil && existing != nil {
		return storage.ErrDuplicate
	}
	if existing, err := s.GetUserByUsername(ctx, user.Username); err == nil && existing != nil {
		return storage.ErrDuplicate
	}
	return s.client.post(ctx, "addUser", sheetUserPayload(user), nil)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	params := url.Values{"id": {id}}
	if err := s.client.get(ctx, "getUser", params, &row); err != nil {
		return nil, err
	}
	return row.toUser()
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, func(u *model.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, func(u *model.User) bool {
		return u.Username == username
	})
}

// findUser 网关只支持按 id 点查，其余查找走全量扫描
func (s *Store) findUser(ctx context.Context, match func(*model.User) bool) (*model.User, error) {
	users, err := s.listAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context, search string) ([]*model.User, error) {
	users, err := s.listAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(search)
	filtered := make([]*model.User, 0, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) &&
			!strings.Contains(strings.ToLower(u.DisplayName), needle) {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered, nil
}

func (s *Store) listAllUsers(ctx context.Context) ([]*model.User, error) {
	var rows []userRow
	if err := s.client.get(ctx, "getUsers", nil, &rows); err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toUser()
		if err != nil {
			log.Printf("[sheetstore] dropping malformed user row: %v", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.client.post(ctx, "updateUser", map[string]interface{}{
		"id":            id,
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil)
}

func (s *Store) UpdateUserLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin *time.Time) error {
	payload := map[string]interface{}{
		"id":             id,
		"login_attempts": attempts,
		"lock_until":     formatTimePtr(lockUntil),
		"updated_at":     time.Now().UTC().Format(time.RFC3339),
	}
	if lastLogin != nil {
		payload["last_login_at"] = lastLogin.UTC().Format(time.RFC3339)
	}
	return s.client.post(ctx, "updateUser", payload, nil)
}

// sheetUserPayload 写入用的完整用户行（含敏感列，表格是受信内网资源）
func sheetUserPayload(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":             u.ID,
		"username":       u.Username,
		"email":          u.Email,
		"display_name":   u.DisplayName,
		"password_hash":  u.PasswordHash,
		"active":         u.Active,
		"preferences":    u.Preferences,
		"login_attempts": u.LoginAttempts,
		"lock_until":     formatTimePtr(u.LockUntil),
		"last_login_at":  formatTimePtr(u.LastLoginAt),
		"created_at":     u.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
