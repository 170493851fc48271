package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
	"workerbee/internal/shared/storage/driver/sqlite"
	"workerbee/internal/shared/storage/repository"
)

// newTestStore 基于内存 SQLite 的存储实例
func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)

	dialect := sqlite.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))

	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleUser(id, username, email string) *model.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		DisplayName:  username,
		PasswordHash: "$2a$12$hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func sampleTask(id, createdBy string) *model.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Task{
		ID:         id,
		Title:      "write quarterly report",
		Priority:   model.PriorityMedium,
		Status:     model.StatusPending,
		AssignedTo: createdBy,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestStore_UserCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := sampleUser("usr-1", "alice", "alice@example.com")
	require.NoError(t, store.CreateUser(ctx, u))

	got, err := store.GetUserByID(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", byEmail.ID)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", byName.ID)

	_, err = store.GetUserByID(ctx, "usr-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DuplicateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, sampleUser("usr-1", "alice", "alice@example.com")))

	// 邮箱冲突
	err := store.CreateUser(ctx, sampleUser("usr-2", "alice2", "alice@example.com"))
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 用户名冲突
	err = store.CreateUser(ctx, sampleUser("usr-3", "alice", "other@example.com"))
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestStore_ListUsersSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, sampleUser("usr-1", "alice", "alice@example.com")))
	require.NoError(t, store.CreateUser(ctx, sampleUser("usr-2", "bob", "bob@example.com")))
	inactive := sampleUser("usr-3", "carol", "carol@example.com")
	inactive.Active = false
	require.NoError(t, store.CreateUser(ctx, inactive))

	all, err := store.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2) // 停用账号不出现在列表

	matched, err := store.ListUsers(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "alice", matched[0].Username)
}

func TestStore_UpdateUserLoginState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, sampleUser("usr-1", "alice", "alice@example.com")))

	lock := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	require.NoError(t, store.UpdateUserLoginState(ctx, "usr-1", 5, &lock, nil))

	got, err := store.GetUserByID(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.LoginAttempts)
	require.NotNil(t, got.LockUntil)
	assert.WithinDuration(t, lock, *got.LockUntil, time.Second)
	assert.Nil(t, got.LastLoginAt)

	// 成功登录：清零并打点 last_login_at
	login := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateUserLoginState(ctx, "usr-1", 0, nil, &login))

	got, err = store.GetUserByID(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)
	require.NotNil(t, got.LastLoginAt)

	err = store.UpdateUserLoginState(ctx, "usr-missing", 1, nil, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_TaskCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, sampleUser("usr-1", "alice", "alice@example.com")))

	task := sampleTask("tsk-1", "usr-1")
	require.NoError(t, store.CreateTask(ctx, task))

	got, err := store.GetTask(ctx, "tsk-1")
	require.NoError(t, err)
	assert.Equal(t, "write quarterly report", got.Title)
	assert.Equal(t, model.StatusPending, got.Status)

	// 完成任务
	completedAt := time.Now().UTC().Truncate(time.Second)
	completedBy := "usr-1"
	got.Status = model.StatusCompleted
	got.CompletedAt = &completedAt
	got.CompletedBy = &completedBy
	got.UpdatedAt = completedAt
	require.NoError(t, store.UpdateTask(ctx, got))

	reloaded, err := store.GetTask(ctx, "tsk-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	require.NotNil(t, reloaded.CompletedBy)
	assert.Equal(t, "usr-1", *reloaded.CompletedBy)

	require.NoError(t, store.DeleteTask(ctx, "tsk-1"))
	_, err = store.GetTask(ctx, "tsk-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.DeleteTask(ctx, "tsk-1"), storage.ErrNotFound)
	assert.ErrorIs(t, store.UpdateTask(ctx, task), storage.ErrNotFound)
}

func TestStore_ListTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"tsk-1", "tsk-2", "tsk-3"} {
		task := sampleTask(id, "usr-1")
		require.NoError(t, store.CreateTask(ctx, task))
	}

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}
