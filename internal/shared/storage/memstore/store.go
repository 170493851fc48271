// Package memstore 实现基于内存的 PersistentStore
//
// 用于单元测试和无持久化的演示部署，行为与磁盘驱动保持一致：
// 相同的领域错误、相同的唯一约束、相同的归一化形状。
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
)

// Store 实现 storage.PersistentStore 接口的内存驱动
type Store struct {
	mu    sync.RWMutex
	users map[string]*model.User
	tasks map[string]*model.Task
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		users: make(map[string]*model.User),
		tasks: make(map[string]*model.Task),
	}
}

// Close 无资源可释放
func (s *Store) Close() error {
	return nil
}

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return storage.ErrDuplicate
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return storage.ErrDuplicate
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return s.findUser(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return s.findUser(func(u *model.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(*model.User) bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, search string) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	var users []*model.User
	for _, u := range s.users {
		if !u.Active {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) &&
			!strings.Contains(strings.ToLower(u.DisplayName), needle) {
			continue
		}
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateUserLoginState(_ context.Context, id string, attempts int, lockUntil, lastLogin *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.LoginAttempts = attempts
	u.LockUntil = lockUntil
	if lastLogin != nil {
		u.LastLoginAt = lastLogin
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ============================================================================
// TaskStore
// ============================================================================

func (s *Store) CreateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return storage.ErrDuplicate
	}
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *Store) ListTasks(_ context.Context) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		clone := *t
		tasks = append(tasks, &clone)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *Store) UpdateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok {
		return storage.ErrNotFound
	}
	clone := *task
	// created_by/created_at 不可变
	clone.CreatedBy = existing.CreatedBy
	clone.CreatedAt = existing.CreatedAt
	s.tasks[task.ID] = &clone
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
