package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
)

func TestStore_UserUniqueness(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "usr-1", Username: "alice", Email: "alice@example.com", Active: true}))

	err := store.CreateUser(ctx, &model.User{ID: "usr-2", Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 邮箱比较大小写无关
	err = store.CreateUser(ctx, &model.User{ID: "usr-3", Username: "bob", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestStore_TaskImmutableCreator(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		ID: "tsk-1", Title: "x", Status: model.StatusPending, Priority: model.PriorityLow,
		CreatedBy: "usr-1", CreatedAt: created, UpdatedAt: created,
	}))

	// 更新时试图篡改 created_by/created_at
	require.NoError(t, store.UpdateTask(ctx, &model.Task{
		ID: "tsk-1", Title: "y", Status: model.StatusPending, Priority: model.PriorityLow,
		CreatedBy: "usr-666", CreatedAt: created.Add(time.Hour), UpdatedAt: time.Now().UTC(),
	}))

	got, err := store.GetTask(ctx, "tsk-1")
	require.NoError(t, err)
	assert.Equal(t, "y", got.Title)
	assert.Equal(t, "usr-1", got.CreatedBy)
	assert.Equal(t, created, got.CreatedAt)
}

func TestStore_ClonesAreIsolated(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &model.Task{ID: "tsk-1", Title: "orig", CreatedBy: "usr-1"}))

	got, err := store.GetTask(ctx, "tsk-1")
	require.NoError(t, err)
	got.Title = "mutated by caller"

	again, err := store.GetTask(ctx, "tsk-1")
	require.NoError(t, err)
	assert.Equal(t, "orig", again.Title)
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.GetTask(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteTask(ctx, "nope"), storage.ErrNotFound)
	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
